package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/config"
	"github.com/creatorflow-io/QualstarLibrary/internal/lock"
	"github.com/creatorflow-io/QualstarLibrary/internal/logutil"
	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/procexec"
	"github.com/creatorflow-io/QualstarLibrary/internal/repo"
)

// fakeLTFS is a test double for LTFSProcedures, letting each test
// script exactly what the mount sequence returns without driving a
// real ltfs/mkltfs binary, per §9's testability note.
type fakeLTFS struct {
	mu              sync.Mutex
	doMountInternal func(e *Engine, drive *model.Drive) (model.OperationStatus, string)
	unmountUnload   func(e *Engine, drive *model.Drive) (model.OperationStatus, string)
}

func (f *fakeLTFS) Initialize(ctx context.Context, traceID string, e *Engine) error { return nil }
func (f *fakeLTFS) CollectDriveStatus(ctx context.Context, traceID string, e *Engine) error {
	return nil
}
func (f *fakeLTFS) Mount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	return model.LTFS11031I, model.LTFS11031I.Message()
}
func (f *fakeLTFS) Unmount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	drive.Release()
	return model.StatusSucceeded, model.StatusSucceeded.Message()
}
func (f *fakeLTFS) DoMountInternal(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	f.mu.Lock()
	fn := f.doMountInternal
	f.mu.Unlock()
	if fn != nil {
		return fn(e, drive)
	}
	return model.LTFS11031I, model.LTFS11031I.Message()
}
func (f *fakeLTFS) DoUnmountThenUnload(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	f.mu.Lock()
	fn := f.unmountUnload
	f.mu.Unlock()
	if fn != nil {
		return fn(e, drive)
	}
	drive.Unassigned()
	drive.Release()
	return model.StatusSucceeded, model.StatusSucceeded.Message()
}

func testConfig() *config.Config {
	return &config.Config{
		TapeLibrary: config.TapeLibrary{
			Drives: []config.DriveConfig{
				{SlotNumber: 1, Address: "0,0", Serial: "DRIVE1"},
				{SlotNumber: 2, Address: "0,1", Serial: "DRIVE2"},
			},
		},
		ListenAddress: ":0",
	}
}

func newTestEngine(t *testing.T, ltfs LTFSProcedures) (*Engine, *procexec.ScriptedRunner) {
	t.Helper()
	runner := procexec.NewScriptedRunner()
	e := New(testConfig(), logutil.NewLogger(""), runner, lock.NewInProcessLocker(), repo.NoopRepository{}, ltfs)
	return e, runner
}

// mtxStatusFixture describes cartridge 000063L7 sitting in storage
// slot 10 and the two configured drives empty.
const mtxStatusFixture = `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 1:Empty:VolumeTag=
Data Transfer Element 2:Empty:VolumeTag=
Storage Element 10:Full:VolumeTag=000063L7
Storage Element 11:Empty:VolumeTag=
`

func expectStatus(runner *procexec.ScriptedRunner, body string) {
	runner.Expect(procexec.ScriptedCall{Program: "mtx", Lines: []string{body}})
}

func TestLoadHappyPath(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, mtxStatusFixture)
	runner.Expect(procexec.ScriptedCall{Program: "mtx"}) // mtx load
	expectStatus(runner, `Data Transfer Element 1:Full (Storage Element 10 Loaded):VolumeTag=000063L7
Data Transfer Element 2:Empty:VolumeTag=
Storage Element 10:Empty:VolumeTag=
Storage Element 11:Empty:VolumeTag=
`)

	op := e.Load(context.Background(), "000063L7", 1)
	if op.Status != model.LTFS11031I {
		t.Fatalf("expected successful mount, got %s: %s", op.Status, op.Message)
	}

	drive := e.driveBySlot(1)
	if drive.LoadedMedia == nil || drive.LoadedMedia.VolumeTag != "000063L7" {
		t.Fatal("expected drive 1 to hold the loaded cartridge after a successful Load")
	}
}

func TestLoadTapeNotFound(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, "Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )\n")

	op := e.Load(context.Background(), "000099L7", 1)
	if op.Status != model.StatusTapeNotFound {
		t.Fatalf("expected TapeNotFound, got %s", op.Status)
	}
}

func TestLoadDriveNotFound(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, mtxStatusFixture)

	op := e.Load(context.Background(), "000063L7", 99)
	if op.Status != model.StatusDriveNotFound {
		t.Fatalf("expected DriveNotFound, got %s", op.Status)
	}
}

func TestConcurrentLoadsOnSameDriveYieldDriveBusy(t *testing.T) {
	release := make(chan struct{})
	ltfs := &fakeLTFS{
		doMountInternal: func(e *Engine, drive *model.Drive) (model.OperationStatus, string) {
			<-release
			return model.LTFS11031I, model.LTFS11031I.Message()
		},
	}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, mtxStatusFixture)
	runner.Expect(procexec.ScriptedCall{Program: "mtx"})
	expectStatus(runner, `Data Transfer Element 1:Full (Storage Element 10 Loaded):VolumeTag=000063L7
Data Transfer Element 2:Empty:VolumeTag=
Storage Element 11:Empty:VolumeTag=
`)

	firstDone := make(chan *model.Operation, 1)
	go func() { firstDone <- e.Load(context.Background(), "000063L7", 1) }()

	// Give the first Load time to pass its single-flight registration
	// and block inside DoMountInternal before the second arrives.
	time.Sleep(100 * time.Millisecond)

	second := e.Load(context.Background(), "000063L7", 1)
	if second.Status != model.StatusDriveBusy {
		t.Fatalf("expected second concurrent Load on the same drive to report DriveBusy, got %s", second.Status)
	}

	close(release)
	first := <-firstDone
	if first.Status != model.LTFS11031I {
		t.Fatalf("expected the first Load to eventually succeed, got %s", first.Status)
	}
}

func TestUnloadNoActionOnEmptyDrive(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, "Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )\nData Transfer Element 1:Empty:VolumeTag=\n")

	op := e.Unload(context.Background(), 1)
	if op.Status != model.StatusNoAction {
		t.Fatalf("expected NoAction unloading an empty drive, got %s", op.Status)
	}
}

func TestTransferToOccupiedSlotFails(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Storage Element 10:Full:VolumeTag=000063L7
Storage Element 11:Full:VolumeTag=000077L7
`)

	op := e.Transfer(context.Background(), "000063L7", 11)
	if op.Status != model.StatusFailed {
		t.Fatalf("expected Failed transferring into an occupied slot, got %s", op.Status)
	}
}

func TestTransferToSameTapeAlreadyThereIsNoop(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Storage Element 10:Full:VolumeTag=000063L7
`)

	op := e.Transfer(context.Background(), "000063L7", 10)
	if op.Status != model.StatusSucceeded {
		t.Fatalf("expected Succeeded transferring a tape to the slot it's already in, got %s", op.Status)
	}
}

func TestReleaseUnloadsEveryFullDrive(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	// Cartridge 000063L7 is loaded in drive 1, reported by mtx as
	// originally coming from storage slot 10 — a different number from
	// the drive's own slot number, so the test can catch a regression
	// that unloads against the drive's slot instead of the tape's home.
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 1:Full (Storage Element 10 Loaded):VolumeTag=000063L7
Data Transfer Element 2:Empty:VolumeTag=
`)
	runner.Expect(procexec.ScriptedCall{Program: "mtx"}) // mtx unload
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 1:Empty:VolumeTag=
Data Transfer Element 2:Empty:VolumeTag=
Storage Element 10:Full:VolumeTag=000063L7
`)

	op := e.Release(context.Background())
	if op.Status != model.StatusSucceeded {
		t.Fatalf("expected Release to succeed, got %s: %s", op.Status, op.Message)
	}
	if e.driveBySlot(1).IsFull() {
		t.Error("expected drive 1 to be empty after Release")
	}

	invocations := runner.Invocations()
	found := false
	for _, inv := range invocations {
		if strings.HasSuffix(inv, "unload 10 1") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected an mtx invocation ending in %q (unload from the cartridge's origin slot 10 into drive 1), got %v", "unload 10 1", invocations)
	}
}

func TestApplyElementsTagConflictStorageSlotWins(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	// The same tag reported simultaneously Full in drive 1 and in
	// storage slot 10; the lower-numbered storage slot must win (§4.3).
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 1:Full:VolumeTag=000063L7
Storage Element 10:Full:VolumeTag=000063L7
`)

	if err := e.CollectStatus(context.Background(), "trace-1", true); err != nil {
		t.Fatalf("CollectStatus: %v", err)
	}

	if e.driveBySlot(1).IsFull() {
		t.Error("expected drive 1 to lose the contested tag to the storage slot")
	}
	slot := e.slotByNumber(10)
	if slot == nil || slot.Media == nil || slot.Media.VolumeTag != "000063L7" {
		t.Error("expected storage slot 10 to hold the contested tag")
	}
}

func TestCollectStatusIgnoresUnknownDriveElement(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 9:Full:VolumeTag=000063L7
`)

	if err := e.CollectStatus(context.Background(), "trace-1", true); err != nil {
		t.Fatalf("CollectStatus: %v", err)
	}
	if e.driveBySlot(9) != nil {
		t.Error("expected no drive to be materialized for an unconfigured element")
	}
}

func TestCollectStatusRejectsMalformedVolumeTag(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	// "SHORT" is not 8 characters (I6); the storage-slot element must
	// be skipped rather than admitted into the model with a bad tag.
	expectStatus(runner, `Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )
Data Transfer Element 1:Empty:VolumeTag=
Storage Element 10:Full:VolumeTag=SHORT
`)

	if err := e.CollectStatus(context.Background(), "trace-1", true); err != nil {
		t.Fatalf("CollectStatus: %v", err)
	}

	slot := e.slotByNumber(10)
	if slot != nil && slot.Media != nil {
		t.Errorf("expected storage slot 10 to stay empty after a malformed volume tag, got %q", slot.Media.VolumeTag)
	}
}

func TestCollectStatusIsRateLimitedWithoutForce(t *testing.T) {
	ltfs := &fakeLTFS{}
	e, runner := newTestEngine(t, ltfs)
	expectStatus(runner, "Storage Changer /dev/sch0:2 Drives, 4 Slots ( 0 Import/Export )\n")

	if err := e.CollectStatus(context.Background(), "trace-1", true); err != nil {
		t.Fatalf("first CollectStatus: %v", err)
	}
	// A second call within the cache window, without force, must not
	// issue another mtx status call (P10) — ScriptedRunner panics on
	// an unmatched invocation, so a failure here would surface loudly.
	if err := e.CollectStatus(context.Background(), "trace-1", false); err != nil {
		t.Fatalf("second CollectStatus: %v", err)
	}
}
