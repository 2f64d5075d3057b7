// Package repo defines the OperationRepository seam the spec treats
// as an opaque external collaborator (§1, §7): the engine calls it
// best-effort and swallows write failures, because the in-memory
// Operation the orchestrator holds remains authoritative regardless of
// whether persistence succeeds.
package repo

import "github.com/creatorflow-io/QualstarLibrary/internal/model"

// OperationRepository persists Operation history. Every method may
// fail; callers in the engine log and discard the error rather than
// letting a storage hiccup affect an in-flight physical operation.
type OperationRepository interface {
	Add(op *model.Operation) error
	UpdateOrAdd(op *model.Operation) error
}

// NoopRepository discards everything. It's the default when no
// persistent store is configured, and it's what makes the
// OperationRepository genuinely opaque to the engine: the engine
// never needs to know whether persistence is wired up at all.
type NoopRepository struct{}

func (NoopRepository) Add(*model.Operation) error         { return nil }
func (NoopRepository) UpdateOrAdd(*model.Operation) error { return nil }
