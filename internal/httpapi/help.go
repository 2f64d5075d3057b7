package httpapi

import "net/http"

// help backs GET /library/help (§6): it serves the catalogue NewRouter
// built while registering every other route, so the two can never
// drift apart.
func (h *handler) help(catalogue []routeEntry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalogue)
	}
}
