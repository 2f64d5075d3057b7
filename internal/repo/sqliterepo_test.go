package repo

import (
	"path/filepath"
	"testing"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

func TestSQLiteRepositoryAddAndUpdate(t *testing.T) {
	dir := t.TempDir()
	r, err := NewSQLiteRepository(filepath.Join(dir, "operations.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer r.Close()

	op := model.NewOperation()
	op.Log("starting")
	if err := r.Add(op); err != nil {
		t.Fatalf("Add: %v", err)
	}

	op.Log("progressing")
	op.Finish(model.StatusSucceeded, "done")
	if err := r.UpdateOrAdd(op); err != nil {
		t.Fatalf("UpdateOrAdd: %v", err)
	}
}

func TestNewSQLiteRepositoryCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "operations.db")

	r1, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	r1.Close()

	r2, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r2.Close()
}

func TestNoopRepositoryDiscardsEverything(t *testing.T) {
	var r OperationRepository = NoopRepository{}
	op := model.NewOperation()
	if err := r.Add(op); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := r.UpdateOrAdd(op); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
