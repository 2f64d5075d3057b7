package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// inflightTask is one single-flight slot: the Operation it produced
// and a channel closed when its body finishes (§4.4 step 1).
type inflightTask struct {
	op   *model.Operation
	done chan struct{}
}

// driveKey and changerKey name the single-flight slots the scheduler
// serializes on. Per-drive operations (Load/Unload/Mount/Unmount/
// Format/Ltfsck) key on their own drive; Transfer and Release key on
// the changer slot since both move cartridges without owning a
// specific drive.
func driveKey(slot int) string { return fmt.Sprintf("drive-%d", slot) }

const changerKey = "changer"

// schedule implements the §4.4 operation wrapper: single-flight check,
// Operation registration, async dispatch of body, and the 15 s reply
// race. body must call op.Finish before returning; if it doesn't,
// schedule finishes it as Failed so no Operation is left Ongoing
// forever by a bug in a playbook.
//
// body runs against a context detached from ctx's cancellation (§5,
// §9: "a cancelled HTTP request cancels the reply race, not the
// operation"). ctx is only used to bound the reply race itself; once
// the caller's request context is gone, the background task must keep
// running so it remains queryable by trace id.
func (e *Engine) schedule(ctx context.Context, key string, body func(ctx context.Context, op *model.Operation)) *model.Operation {
	e.schedMu.Lock()
	if t, busy := e.sched[key]; busy {
		select {
		case <-t.done:
			delete(e.sched, key)
		default:
			e.schedMu.Unlock()
			return e.busyOperationFor(key)
		}
	}

	op := model.NewOperation()
	wait := DefaultPollAdvisory
	op.WaitBeforeNextTrace = &wait
	e.Operations.Add(op)

	task := &inflightTask{op: op, done: make(chan struct{})}
	e.sched[key] = task
	e.schedMu.Unlock()

	if err := e.repo.Add(op); err != nil {
		e.logger.Event(fmt.Sprintf("repo.Add failed for operation %s: %v", op.TraceID, err))
	}

	bodyCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				op.Finish(model.StatusFailed, fmt.Sprintf("%v", r))
			}
		}()
		body(bodyCtx, op)
		if !op.IsTerminal() {
			op.Finish(model.StatusFailed, "operation returned without a terminal status")
		}
		if err := e.repo.UpdateOrAdd(op); err != nil {
			e.logger.Event(fmt.Sprintf("repo.UpdateOrAdd failed for operation %s: %v", op.TraceID, err))
		}
	}()

	select {
	case <-task.done:
		return op
	case <-ctx.Done():
		return op
	case <-time.After(ReplyRaceWindow):
		return op
	}
}

// busyOperationFor returns the synthetic Busy outcome for the given
// single-flight key: DriveBusy for a drive key, MtxBusy for the
// changer key (§4.4 Locks).
func (e *Engine) busyOperationFor(key string) *model.Operation {
	status := model.StatusDriveBusy
	if key == changerKey {
		status = model.StatusMtxBusy
	}
	op := model.NewOperation()
	wait := BusyAdvisory
	op.WaitBeforeNextOperation = &wait
	op.Finish(status, status.Message())
	return op
}

// busyOutcome lets playbook code produce the same Busy shape when a
// lock.Acquire fails mid-playbook, after the scheduler has already
// registered the real Operation.
func busyOutcome(status model.OperationStatus) (model.OperationStatus, string, *time.Duration) {
	wait := BusyAdvisory
	return status, status.Message(), &wait
}
