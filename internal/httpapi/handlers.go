package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/creatorflow-io/QualstarLibrary/internal/engine"
	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

type handler struct {
	engine *engine.Engine
}

// writeJSON pretty-prints v, matching §6 "responses pretty-printed".
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

// pathInt extracts and parses an integer path variable, writing a 400
// (§6 "malformed path") and returning ok=false on failure.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := mux.Vars(r)[name]
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, "expected an integer "+name+", got "+raw)
		return 0, false
	}
	return n, true
}

func pathTag(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := mux.Vars(r)[name]
	tag, err := model.ParseVolumeTag(raw)
	if err != nil {
		badRequest(w, "expected an 8-character volume tag for "+name+", got "+raw)
		return "", false
	}
	return tag, true
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Verify(r.Context()))
}

type dataResponse struct {
	Drives []model.Drive       `json:"Drives"`
	Slots  []model.StorageSlot `json:"Slots"`
}

func (h *handler) dataWith(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.engine.CollectStatus(r.Context(), model.NewTraceID(), force)
		writeJSON(w, http.StatusOK, dataResponse{Drives: h.engine.Drives(), Slots: h.engine.Slots()})
	}
}

func (h *handler) data(w http.ResponseWriter, r *http.Request)      { h.dataWith(false)(w, r) }
func (h *handler) dataForce(w http.ResponseWriter, r *http.Request) { h.dataWith(true)(w, r) }

func (h *handler) drivesWith(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.engine.CollectStatus(r.Context(), model.NewTraceID(), force)
		writeJSON(w, http.StatusOK, h.engine.Drives())
	}
}

func (h *handler) drives(w http.ResponseWriter, r *http.Request)      { h.drivesWith(false)(w, r) }
func (h *handler) drivesForce(w http.ResponseWriter, r *http.Request) { h.drivesWith(true)(w, r) }

func (h *handler) tapesWith(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.engine.CollectStatus(r.Context(), model.NewTraceID(), force)
		writeJSON(w, http.StatusOK, h.engine.Media())
	}
}

func (h *handler) tapes(w http.ResponseWriter, r *http.Request)      { h.tapesWith(false)(w, r) }
func (h *handler) tapesForce(w http.ResponseWriter, r *http.Request) { h.tapesWith(true)(w, r) }

func (h *handler) slotsWith(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.engine.CollectStatus(r.Context(), model.NewTraceID(), force)
		writeJSON(w, http.StatusOK, h.engine.Slots())
	}
}

func (h *handler) slots(w http.ResponseWriter, r *http.Request)      { h.slotsWith(false)(w, r) }
func (h *handler) slotsForce(w http.ResponseWriter, r *http.Request) { h.slotsWith(true)(w, r) }

func (h *handler) load(w http.ResponseWriter, r *http.Request) {
	drive, ok := pathInt(w, r, "drive")
	if !ok {
		return
	}
	tape, ok := pathTag(w, r, "tape")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Load(r.Context(), tape, drive))
}

func (h *handler) unload(w http.ResponseWriter, r *http.Request) {
	drive, ok := pathInt(w, r, "drive")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Unload(r.Context(), drive))
}

func (h *handler) mount(w http.ResponseWriter, r *http.Request) {
	drive, ok := pathInt(w, r, "drive")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Mount(r.Context(), drive))
}

func (h *handler) unmount(w http.ResponseWriter, r *http.Request) {
	drive, ok := pathInt(w, r, "drive")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Unmount(r.Context(), drive))
}

func (h *handler) formatWith(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drive, ok := pathInt(w, r, "drive")
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, h.engine.Format(r.Context(), drive, force))
	}
}

func (h *handler) format(w http.ResponseWriter, r *http.Request)      { h.formatWith(false)(w, r) }
func (h *handler) formatForce(w http.ResponseWriter, r *http.Request) { h.formatWith(true)(w, r) }

func (h *handler) ltfsck(w http.ResponseWriter, r *http.Request) {
	drive, ok := pathInt(w, r, "drive")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Ltfsck(r.Context(), drive))
}

func (h *handler) transfer(w http.ResponseWriter, r *http.Request) {
	tape, ok := pathTag(w, r, "tape")
	if !ok {
		return
	}
	slot, ok := pathInt(w, r, "slot")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Transfer(r.Context(), tape, slot))
}

func (h *handler) release(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Release(r.Context()))
}

// operation implements GET /library/operation/{trace_id}[/{ticks}]: a
// missing Operation (unknown or garbage-collected trace id) reports
// JSON null, per P9.
func (h *handler) operation(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["trace_id"]
	ticks := mux.Vars(r)["ticks"]

	op := h.engine.Operations.Get(traceID)
	if op == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, operationView{
		TraceID:                 op.TraceID,
		Status:                  op.Status,
		Message:                 op.Message,
		StartedAt:               op.StartedAt,
		EndedAt:                 op.EndedAt,
		WaitBeforeNextOperation: op.WaitBeforeNextOperation,
		WaitBeforeNextTrace:     op.WaitBeforeNextTrace,
		Logs:                    op.Logs(ticks),
	})
}

// operationView mirrors model.Operation's JSON shape but substitutes
// the ticks-filtered log slice for the full buffer.
type operationView struct {
	TraceID                 string                `json:"trace_id"`
	Status                  model.OperationStatus `json:"status"`
	Message                 string                `json:"message"`
	StartedAt               time.Time             `json:"started_at"`
	EndedAt                 *time.Time            `json:"ended_at,omitempty"`
	WaitBeforeNextOperation *time.Duration        `json:"wait_before_next_operation,omitempty"`
	WaitBeforeNextTrace     *time.Duration        `json:"wait_before_next_trace,omitempty"`
	Logs                    []model.LogEntry      `json:"logs"`
}
