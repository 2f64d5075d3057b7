package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// acquireDriveLock takes the TapeDrive-{slot} lock for op's lifetime.
// The returned unlock func is always safe to defer even on the
// failure path (§5 "scoped acquisition pattern").
func (e *Engine) acquireDriveLock(ctx context.Context, op *model.Operation, slot int) (func(), bool) {
	lk, ok := e.locker.Acquire(ctx, driveKey(slot), op.TraceID, DriveLockTTL)
	if !ok {
		return func() {}, false
	}
	e.emitDriveChanged(slot, "Locked to "+op.TraceID)
	return func() {
		lk.Unlock()
		e.emitDriveChanged(slot, "Unlocked after "+op.TraceID)
	}, true
}

// acquireChangerLock takes the global TapeChanger lock.
func (e *Engine) acquireChangerLock(ctx context.Context, op *model.Operation, ttl time.Duration) (func(), bool) {
	lk, ok := e.locker.Acquire(ctx, "TapeChanger", op.TraceID, ttl)
	if !ok {
		return func() {}, false
	}
	return func() { lk.Unlock() }, true
}

// findSlotHolding returns the storage slot currently holding
// volumeTag, or nil.
func (e *Engine) findSlotHolding(volumeTag string) *model.StorageSlot {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	for _, n := range sortedKeys(e.slots) {
		slot := e.slots[n]
		if slot.Media != nil && slot.Media.VolumeTag == volumeTag {
			return slot
		}
	}
	return nil
}

func (e *Engine) slotExists(slotNumber int) bool {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	_, ok := e.slots[slotNumber]
	return ok
}

func (e *Engine) slotByNumber(slotNumber int) *model.StorageSlot {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	return e.slots[slotNumber]
}

// Load implements the Load(volume_tag, drive_slot) playbook (§4.4).
func (e *Engine) Load(ctx context.Context, volumeTag string, driveSlot int) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		e.log(op.TraceID, fmt.Sprintf("load %s into drive %d", volumeTag, driveSlot))
		e.CollectStatus(ctx, op.TraceID, true)

		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}

		if drive.IsFull() && drive.LoadedMedia.VolumeTag != volumeTag {
			e.unloadDriveBody(ctx, op, drive)
			time.Sleep(500 * time.Millisecond)
		}

		unlockDrive, ok := e.acquireDriveLock(ctx, op, driveSlot)
		defer unlockDrive()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusDriveBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}

		if !drive.IsFull() {
			srcSlot := e.findSlotHolding(volumeTag)
			if srcSlot == nil {
				op.Finish(model.StatusTapeNotFound, model.StatusTapeNotFound.Message())
				return
			}

			unlockChanger, ok := e.acquireChangerLock(ctx, op, ChangerLockTTL)
			if !ok {
				status, msg, wait := busyOutcome(model.StatusMtxBusy)
				op.WaitBeforeNextOperation = wait
				op.Finish(status, msg)
				return
			}

			err := e.changer.Load(ctx, op.TraceID, func(line string) { e.log(op.TraceID, line) }, srcSlot.SlotNumber, driveSlot)
			if err != nil {
				e.log(op.TraceID, fmt.Sprintf("mtx load failed: %v, waiting 10s and re-checking", err))
				time.Sleep(10 * time.Second)
				e.CollectStatus(ctx, op.TraceID, true)
				drive = e.driveBySlot(driveSlot)
				if drive == nil || !drive.IsFull() || drive.LoadedMedia.VolumeTag != volumeTag {
					unlockChanger()
					op.Finish(model.StatusFailed, fmt.Sprintf("mtx load %d %d failed: %v", srcSlot.SlotNumber, driveSlot, err))
					return
				}
			} else {
				e.CollectStatus(ctx, op.TraceID, true)
				drive = e.driveBySlot(driveSlot)
			}
			unlockChanger()
			e.emitDriveChanged(driveSlot, "Load")
			e.emitMediaChanged(volumeTag)
		}

		status, msg := e.ltfs.DoMountInternal(ctx, op.TraceID, e, drive)
		op.Finish(status, msg)
	})
}

// unloadDriveBody is the shared Unmount-then-Unload body used by the
// Unload playbook, by Load's preemptive swap, and by Release.
func (e *Engine) unloadDriveBody(ctx context.Context, op *model.Operation, drive *model.Drive) (model.OperationStatus, string) {
	if !drive.IsFull() {
		return model.StatusNoAction, model.StatusNoAction.Message()
	}

	unlockDrive, ok := e.acquireDriveLock(ctx, op, drive.SlotNumber)
	defer unlockDrive()
	if !ok {
		status, msg, wait := busyOutcome(model.StatusDriveBusy)
		op.WaitBeforeNextOperation = wait
		return status, msg
	}

	if drive.IsAssigned() {
		status, msg := e.ltfs.DoUnmountThenUnload(ctx, op.TraceID, e, drive)
		if status.IsFinallyError() && !status.IsEjectable() {
			return status, msg
		}
	}
	time.Sleep(5 * time.Second)

	volumeTag := ""
	if drive.LoadedMedia != nil {
		volumeTag = drive.LoadedMedia.VolumeTag
	}
	var originSlot *int
	if drive.LoadedMedia != nil {
		originSlot = drive.LoadedMedia.OriginSlot
	}

	unlockChanger, ok := e.acquireChangerLock(ctx, op, ChangerLockTTL)
	if !ok {
		status, msg, wait := busyOutcome(model.StatusMtxBusy)
		op.WaitBeforeNextOperation = wait
		return status, msg
	}
	defer unlockChanger()

	targetSlot := driveOriginSlot(e, drive)
	err := e.changer.Unload(ctx, op.TraceID, func(line string) { e.log(op.TraceID, line) }, targetSlot, drive.SlotNumber)
	if err != nil {
		e.log(op.TraceID, fmt.Sprintf("mtx unload failed: %v, waiting 10s and re-checking", err))
		time.Sleep(10 * time.Second)
		e.CollectStatus(ctx, op.TraceID, true)
		if originSlot == nil || e.slotByNumber(*originSlot) == nil || e.slotByNumber(*originSlot).Media == nil || e.slotByNumber(*originSlot).Media.VolumeTag != volumeTag {
			return model.StatusFailed, fmt.Sprintf("mtx unload %d %d failed: %v", targetSlot, drive.SlotNumber, err)
		}
	} else {
		e.CollectStatus(ctx, op.TraceID, true)
	}
	e.emitDriveChanged(drive.SlotNumber, "Unload")
	if volumeTag != "" {
		e.emitMediaChanged(volumeTag)
	}
	return model.StatusSucceeded, model.StatusSucceeded.Message()
}

// driveOriginSlot resolves the storage slot a loaded cartridge should
// return to: the slot the last mtx status Data Transfer element
// reported it loaded from (Media.OriginSlot), falling back to the
// drive's own slot number when the model has no opinion yet (e.g. the
// cartridge was loaded before this process started tracking it).
func driveOriginSlot(e *Engine, drive *model.Drive) int {
	if drive.LoadedMedia != nil && drive.LoadedMedia.OriginSlot != nil {
		return *drive.LoadedMedia.OriginSlot
	}
	return drive.SlotNumber
}

// Unload implements the Unload(drive_slot) playbook (§4.4).
func (e *Engine) Unload(ctx context.Context, driveSlot int) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)
		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}
		status, msg := e.unloadDriveBody(ctx, op, drive)
		op.Finish(status, msg)
	})
}

// Mount implements the Mount(drive_slot) playbook: refresh, lock
// drive, dispatch to the platform, no robot motion.
func (e *Engine) Mount(ctx context.Context, driveSlot int) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)
		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}
		unlock, ok := e.acquireDriveLock(ctx, op, driveSlot)
		defer unlock()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusDriveBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}
		status, msg := e.ltfs.Mount(ctx, op.TraceID, e, drive)
		op.Finish(status, msg)
	})
}

// Unmount implements the Unmount(drive_slot) playbook: refresh, lock
// drive, dispatch to the platform, no robot motion.
func (e *Engine) Unmount(ctx context.Context, driveSlot int) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)
		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}
		unlock, ok := e.acquireDriveLock(ctx, op, driveSlot)
		defer unlock()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusDriveBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}
		status, msg := e.ltfs.Unmount(ctx, op.TraceID, e, drive)
		op.Finish(status, msg)
	})
}

// Format implements the Format(drive_slot, force) playbook.
func (e *Engine) Format(ctx context.Context, driveSlot int, force bool) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)
		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}
		if !drive.IsFull() {
			op.Finish(model.StatusTapeNotFound, "drive is empty")
			return
		}
		unlock, ok := e.acquireDriveLock(ctx, op, driveSlot)
		defer unlock()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusDriveBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}

		args := []string{"--device=" + drive.DeviceName}
		if drive.LoadedMedia != nil {
			args = append(args, "--tape-serial="+model.TapeSerial(drive.LoadedMedia.VolumeTag))
		}
		if force {
			args = append(args, "--force")
		}
		var lines []string
		exitCode, lastMessage, err := e.runner.Run(ctx, op.TraceID, e.ltfsBinary("mkltfs"), args, func(line string) {
			lines = append(lines, line)
			e.log(op.TraceID, line)
		})
		output := joinLines(lines)
		code, found := extractLTFSCode(output)
		if !found {
			if err != nil || exitCode != 0 {
				op.Finish(model.StatusFailed, lastMessage)
				return
			}
			code = model.LTFS15024I
		}
		status, msg := e.HandleCommonLtfsStatus(ctx, op.TraceID, drive, code, code.Message())
		op.Finish(status, msg)
	})
}

// Ltfsck implements the Ltfsck(drive_slot) playbook.
func (e *Engine) Ltfsck(ctx context.Context, driveSlot int) *model.Operation {
	return e.schedule(ctx, driveKey(driveSlot), func(ctx context.Context, op *model.Operation) {
		drive := e.driveBySlot(driveSlot)
		if drive == nil {
			op.Finish(model.StatusDriveNotFound, model.StatusDriveNotFound.Message())
			return
		}
		if !drive.IsFull() {
			op.Finish(model.StatusTapeNotFound, "drive is empty")
			return
		}
		unlock, ok := e.acquireDriveLock(ctx, op, driveSlot)
		defer unlock()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusDriveBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}
		status, msg := e.runLtfsck(ctx, op.TraceID, drive)
		if status == model.LTFS16022I {
			status, msg = e.HandleCommonLtfsStatus(ctx, op.TraceID, drive, status, msg)
		}
		op.Finish(status, msg)
	})
}

// runLtfsck invokes `ltfsck {dev}` and extracts its status code.
func (e *Engine) runLtfsck(ctx context.Context, traceID string, drive *model.Drive) (model.OperationStatus, string) {
	var lines []string
	exitCode, lastMessage, err := e.runner.Run(ctx, traceID, e.ltfsBinary("ltfsck"), []string{drive.DeviceName}, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	code, found := extractLTFSCode(joinLines(lines))
	if !found {
		if err != nil || exitCode != 0 {
			return model.StatusFailed, lastMessage
		}
		return model.LTFS16022I, model.LTFS16022I.Message()
	}
	return code, code.Message()
}

// Transfer implements the Transfer(volume_tag, target_slot) playbook.
func (e *Engine) Transfer(ctx context.Context, volumeTag string, targetSlot int) *model.Operation {
	return e.schedule(ctx, changerKey, func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)

		if !e.slotExists(targetSlot) {
			op.Finish(model.StatusDriveNotFound, "target slot does not exist")
			return
		}
		if dst := e.slotByNumber(targetSlot); dst.Media != nil {
			if dst.Media.VolumeTag == volumeTag {
				op.Finish(model.StatusSucceeded, model.StatusSucceeded.Message())
				return
			}
			op.Finish(model.StatusFailed, "target slot is occupied")
			return
		}

		src := e.findSlotHolding(volumeTag)
		if src == nil {
			op.Finish(model.StatusTapeNotFound, model.StatusTapeNotFound.Message())
			return
		}

		unlockChanger, ok := e.acquireChangerLock(ctx, op, ChangerLockTTL)
		defer unlockChanger()
		if !ok {
			status, msg, wait := busyOutcome(model.StatusMtxBusy)
			op.WaitBeforeNextOperation = wait
			op.Finish(status, msg)
			return
		}

		err := e.changer.Transfer(ctx, op.TraceID, func(line string) { e.log(op.TraceID, line) }, src.SlotNumber, targetSlot)
		if err != nil {
			e.log(op.TraceID, fmt.Sprintf("mtx transfer failed: %v, re-checking status", err))
			e.CollectStatus(ctx, op.TraceID, true)
			dst := e.slotByNumber(targetSlot)
			if dst == nil || dst.Media == nil || dst.Media.VolumeTag != volumeTag {
				op.Finish(model.StatusFailed, fmt.Sprintf("mtx transfer %d %d failed: %v", src.SlotNumber, targetSlot, err))
				return
			}
		} else {
			e.CollectStatus(ctx, op.TraceID, true)
		}
		e.emitMediaChanged(volumeTag)
		op.Finish(model.StatusSucceeded, model.StatusSucceeded.Message())
	})
}

// Release implements the Release() playbook: refresh, then
// Unmount-then-Unload every full drive in sequence, stopping at the
// first failure.
func (e *Engine) Release(ctx context.Context) *model.Operation {
	return e.schedule(ctx, changerKey, func(ctx context.Context, op *model.Operation) {
		e.CollectStatus(ctx, op.TraceID, true)
		for _, slot := range e.driveSlotsSnapshot() {
			drive := e.driveBySlot(slot)
			if drive == nil || !drive.IsFull() {
				continue
			}
			status, msg := e.unloadDriveBody(ctx, op, drive)
			if !status.IsSuccess() {
				op.Finish(status, msg)
				return
			}
		}
		op.Finish(model.StatusSucceeded, model.StatusSucceeded.Message())
	})
}

func (e *Engine) driveSlotsSnapshot() []int {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	return sortedKeys(e.drives)
}
