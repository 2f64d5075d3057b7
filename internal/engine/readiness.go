package engine

import (
	"context"
	"fmt"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// Verify implements GET /library/verify (§6): run initialize() exactly
// once per process, then a forced status refresh, reporting whether
// both succeeded.
func (e *Engine) Verify(ctx context.Context) bool {
	traceID := model.NewTraceID()

	var initErr error
	e.initOnce.Do(func() {
		initErr = e.Initialize(ctx, traceID)
	})
	if initErr != nil {
		e.log(traceID, fmt.Sprintf("initialize failed: %v", initErr))
		return false
	}
	if err := e.CollectStatus(ctx, traceID, true); err != nil {
		e.log(traceID, fmt.Sprintf("collect_status failed: %v", err))
		return false
	}
	return true
}
