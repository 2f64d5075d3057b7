package engine

import "fmt"

// EventSink receives the engine's three event streams (§4.5). Handlers
// are called synchronously but any panic is recovered and logged, so a
// misbehaving sink never takes down an in-flight operation.
type EventSink interface {
	DriveChanged(slot int, operationName string)
	MediaChanged(volumeTag string)
	OperationLogging(traceID, message string)
}

// AddSink registers a sink to receive future events.
func (e *Engine) AddSink(sink EventSink) {
	e.sinksMu.Lock()
	defer e.sinksMu.Unlock()
	e.sinks = append(e.sinks, sink)
}

func (e *Engine) emit(fn func(EventSink)) {
	e.sinksMu.Lock()
	sinks := make([]EventSink, len(e.sinks))
	copy(sinks, e.sinks)
	e.sinksMu.Unlock()

	for _, sink := range sinks {
		func(s EventSink) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Event(fmt.Sprintf("event sink panicked: %v", r))
				}
			}()
			fn(s)
		}(sink)
	}
}

func (e *Engine) emitDriveChanged(slot int, operationName string) {
	e.emit(func(s EventSink) { s.DriveChanged(slot, operationName) })
}

func (e *Engine) emitMediaChanged(volumeTag string) {
	e.emit(func(s EventSink) { s.MediaChanged(volumeTag) })
}

func (e *Engine) emitOperationLogging(traceID, message string) {
	e.emit(func(s EventSink) { s.OperationLogging(traceID, message) })
}

// log writes a line to the rotating logger (fanning out through
// logutil's own sinks), appends it to the named Operation's own log
// buffer if one is registered under traceID, and emits
// OperationLogging so any sink added with AddSink sees every traced
// line regardless of whether it also subscribed to the Logger.
func (e *Engine) log(traceID, message string) {
	e.logger.TraceEvent(traceID, message)
	if op := e.Operations.Get(traceID); op != nil {
		op.Log(message)
	}
	e.emitOperationLogging(traceID, message)
}
