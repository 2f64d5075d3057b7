// Package httpapi is the C7 external collaborator (§6): the HTTP
// surface over the Library Control Engine. It is specified only at
// its boundary — route table, status codes, JSON shape — and owns no
// domain state of its own.
package httpapi

import (
	"io"
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/creatorflow-io/QualstarLibrary/internal/engine"
)

// routeEntry is one row of the §6 table; the same slice drives both
// route registration and the /library/help catalogue so they can
// never drift apart.
type routeEntry struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// NewRouter builds the `/library` HTTP surface over e, logging every
// request through gorilla/handlers the way the teacher's own router
// wraps every registered handler.
func NewRouter(e *engine.Engine, logWriter io.Writer) *mux.Router {
	h := &handler{engine: e}
	log := gorillaHandlers.CombinedLoggingHandler

	router := mux.NewRouter()
	router.NotFoundHandler = log(logWriter, http.HandlerFunc(badRequestHandler))
	router.MethodNotAllowedHandler = log(logWriter, http.HandlerFunc(methodNotAllowedHandler))

	lib := router.PathPrefix("/library").Subrouter()

	var catalogue []routeEntry
	register := func(method, path, purpose string, fn http.HandlerFunc) {
		lib.Handle(path, log(logWriter, fn)).Methods(method)
		catalogue = append(catalogue, routeEntry{Method: method, Path: "/library" + path, Purpose: purpose})
	}

	register("GET", "/verify", "initialize the engine and report readiness", h.verify)
	register("GET", "/data", "snapshot of drives and slots together", h.data)
	register("GET", "/data/force", "snapshot of drives and slots together, bypassing the status cache", h.dataForce)
	register("GET", "/drives", "drive snapshot", h.drives)
	register("GET", "/drives/force", "drive snapshot, bypassing the status cache", h.drivesForce)
	register("GET", "/tapes", "media snapshot", h.tapes)
	register("GET", "/tapes/force", "media snapshot, bypassing the status cache", h.tapesForce)
	register("GET", "/slots", "storage slot snapshot", h.slots)
	register("GET", "/slots/force", "storage slot snapshot, bypassing the status cache", h.slotsForce)
	register("POST", "/load/{drive}/{tape}", "load a cartridge into a drive and mount it", h.load)
	register("POST", "/unload/{drive}", "unmount and unload a drive", h.unload)
	register("POST", "/mount/{drive}", "mount a drive's already-loaded cartridge", h.mount)
	register("POST", "/unmount/{drive}", "unmount a drive without unloading it", h.unmount)
	register("POST", "/format/{drive}", "run mkltfs on a drive's loaded cartridge", h.format)
	register("POST", "/format/{drive}/force", "run mkltfs on a drive's loaded cartridge, bypassing the empty-tape check", h.formatForce)
	register("POST", "/ltfsck/{drive}", "run ltfsck on a drive's loaded cartridge", h.ltfsck)
	register("POST", "/transfer/{tape}/{slot}", "move a cartridge to a target storage slot", h.transfer)
	register("POST", "/release", "unmount and unload every full drive", h.release)
	register("GET", "/operation/{trace_id}", "poll an operation by trace id", h.operation)
	register("GET", "/operation/{trace_id}/{ticks}", "poll an operation by trace id, tailing its log from a ULID cursor", h.operation)
	catalogue = append(catalogue, routeEntry{Method: "GET", Path: "/library/help", Purpose: "this catalogue"})
	lib.Handle("/help", log(logWriter, h.help(catalogue))).Methods("GET")

	return router
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Invalid request"})
}

func badRequestHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed path; see GET /library/help for the expected shape"})
}
