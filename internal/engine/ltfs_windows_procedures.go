package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/parse"
)

// windowsLTFS is the Windows implementation of LTFSProcedures (§4.4
// "Windows:"), driving the LtfsCmd* tool family and the drive-letter
// assignment dance that platform requires before a mount.
type windowsLTFS struct{}

// NewWindowsProcedures returns the Windows platform strategy.
func NewWindowsProcedures() LTFSProcedures { return windowsLTFS{} }

func (windowsLTFS) Initialize(ctx context.Context, traceID string, e *Engine) error {
	return windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
}

func (windowsLTFS) CollectDriveStatus(ctx context.Context, traceID string, e *Engine) error {
	var lines []string
	_, _, err := e.runner.Run(ctx, traceID, "LtfsCmdDrives", nil, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	if err != nil {
		return err
	}
	rows := parse.ParseWindowsDrives(joinLines(lines))
	e.eachDrive(func(drive *model.Drive) {
		for _, row := range rows {
			if row.Address != drive.Address {
				continue
			}
			if row.AssignedLetter != "" {
				drive.AssignedTo(row.AssignedLetter)
			}
			if row.Serial != "" {
				drive.Serial = row.Serial
			}
			drive.SetStatus(row.Status)
		}
	})
	return nil
}

// assignedLetters returns the set of drive letters currently bound to
// a drive, under the model lock.
func (e *Engine) assignedLetters() map[string]bool {
	used := make(map[string]bool)
	e.eachDrive(func(drive *model.Drive) {
		if drive.IsAssigned() {
			used[drive.MountPoint] = true
		}
	})
	return used
}

// assignAsync implements AssignAsync (§4.4 Windows): pick the
// highest-unused drive letter descending from Z, aborting once D is
// reached (E..Z is the usable range), and bind drive to it via
// LtfsCmdAssign.
func (e *Engine) assignAsync(ctx context.Context, traceID string, drive *model.Drive) (model.OperationStatus, string) {
	used := e.assignedLetters()
	for letter := byte('Z'); letter > 'D'; letter-- {
		candidate := string(letter)
		if used[candidate] {
			continue
		}
		_, lastMessage, err := e.runner.Run(ctx, traceID, "LtfsCmdAssign", []string{drive.Address, candidate}, func(line string) { e.log(traceID, line) })
		if err != nil {
			return model.StatusFailed, fmt.Sprintf("LtfsCmdAssign %s %s: %s", drive.Address, candidate, lastMessage)
		}
		drive.AssignedTo(candidate)
		return model.StatusSucceeded, model.StatusSucceeded.Message()
	}
	return model.StatusFailed, "no free drive letters between E and Z"
}

func (windowsLTFS) Mount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	var lines []string
	exitCode, lastMessage, err := e.runner.Run(ctx, traceID, "LtfsCmdLoad", []string{drive.MountPoint}, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	code, found := extractLTFSCode(joinLines(lines))
	if !found {
		if err != nil || exitCode != 0 {
			return model.StatusFailed, lastMessage
		}
		return model.LTFS11031I, model.LTFS11031I.Message()
	}
	if code == model.LTFS60233E {
		windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
		switch drive.Status {
		case model.LtfsInconsistent, model.LtfsUnformatted, model.LtfsMedia:
			return model.LTFS11031I, "state changed by another session, accepted after refresh"
		}
	}
	return code, code.Message()
}

func (windowsLTFS) Unmount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	var lines []string
	_, lastMessage, err := e.runner.Run(ctx, traceID, "LtfsCmdEject", []string{drive.MountPoint}, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	code, found := extractLTFSCode(joinLines(lines))
	if !found {
		if err != nil {
			return model.StatusFailed, lastMessage
		}
		drive.Release()
		return model.StatusSucceeded, model.StatusSucceeded.Message()
	}
	if code == model.LTFS60233E {
		windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
		if drive.Status == model.LtfsNoMedia {
			drive.Release()
			return model.StatusSucceeded, "state changed by another session, drive now NO_MEDIA"
		}
	}
	if code == model.LTFS12035E {
		drive.Release()
		return model.StatusSucceeded, "rewind failed, drive or tape likely damaged; release allowed to proceed so the cartridge can still be ejected"
	}
	drive.Release()
	return code, code.Message()
}

func (windowsLTFS) DoMountInternal(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)

	if !drive.IsAssigned() {
		if status, msg := e.assignAsync(ctx, traceID, drive); !status.IsSuccess() {
			return e.HandleCommonLtfsStatus(ctx, traceID, drive, status, msg)
		}
		time.Sleep(5 * time.Second)
		windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
	}

	pollUntil(ctx, 10*time.Second, 10*time.Second, 2*time.Minute, func() bool {
		if drive.Status != model.LtfsMediaNotReady {
			return true
		}
		windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
		return drive.Status != model.LtfsMediaNotReady
	})

	var status model.OperationStatus
	var msg string
	switch drive.Status {
	case model.LtfsInconsistent:
		status, msg = e.runLtfsck(ctx, traceID, drive)
		return e.HandleCommonLtfsStatus(ctx, traceID, drive, status, msg)
	case model.LtfsUnformatted:
		return e.HandleCommonLtfsStatus(ctx, traceID, drive, model.LTFS17168E, model.LTFS17168E.Message())
	case model.LtfsNoMedia:
		if drive.IsFull() {
			status, msg = windowsLTFS{}.Mount(ctx, traceID, e, drive)
		} else {
			status, msg = model.StatusTapeNotFound, model.StatusTapeNotFound.Message()
		}
	default:
		status, msg = model.LTFS11031I, model.LTFS11031I.Message()
	}
	return e.HandleCommonLtfsStatus(ctx, traceID, drive, status, msg)
}

func (windowsLTFS) DoUnmountThenUnload(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	status, msg := windowsLTFS{}.Unmount(ctx, traceID, e, drive)
	if !status.IsSuccess() && !status.IsEjectable() {
		return status, msg
	}
	letter := drive.MountPoint
	if letter != "" {
		e.runner.Run(ctx, traceID, "LtfsCmdUnassign", []string{letter}, func(line string) { e.log(traceID, line) })
		drive.Unassigned()
	}
	windowsLTFS{}.CollectDriveStatus(ctx, traceID, e)
	return status, msg
}
