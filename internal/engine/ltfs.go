package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/parse"
)

// HandleCommonLtfsStatus is the central status->state reconciler
// shared by both platform strategies (§4.4 table). It mutates drive
// and returns the outcome the caller should propagate.
func (e *Engine) HandleCommonLtfsStatus(ctx context.Context, traceID string, drive *model.Drive, status model.OperationStatus, msg string) (model.OperationStatus, string) {
	switch status {
	case model.LTFS11331E, model.LTFS11006E, model.LTFS12019E:
		drive.SetStatus(model.LtfsNoMedia)
		drive.MarkFailed(driveFailedTag(drive))
		e.emitDriveChanged(drive.SlotNumber, "Failure")
		return status, "drive or tape damaged"
	case model.LTFS17168E:
		drive.SetStatus(model.LtfsUnformatted)
		return status, "tape unformatted"
	case model.LTFS11095E:
		drive.SetStatus(model.LtfsReadOnly)
		return status, "tape write-protected"
	case model.LTFS16021E, model.LTFS16087E:
		drive.SetStatus(model.LtfsInconsistent)
		return status, "tape inconsistent"
	case model.LTFS15024I, model.LTFS11031I:
		drive.SetStatus(model.LtfsMedia)
		e.refreshDriveInfo(ctx, traceID, drive)
		e.emitDriveChanged(drive.SlotNumber, "Mount")
		return status, msg
	default:
		if drive.Status == model.LtfsUnformatted {
			return model.LTFS17168E, model.LTFS17168E.Message()
		}
		if drive.Status == model.LtfsMedia {
			e.refreshDriveInfo(ctx, traceID, drive)
			e.emitDriveChanged(drive.SlotNumber, "Mount")
			return model.LTFS11031I, model.LTFS11031I.Message()
		}
		return status, msg
	}
}

func driveFailedTag(drive *model.Drive) string {
	if drive.LoadedMedia != nil {
		return drive.LoadedMedia.VolumeTag
	}
	return ""
}

// refreshDriveInfo populates capacity/remaining on the drive's loaded
// media from `df` (§4.4 HandleCommonLtfsStatus "populate capacity/free
// from OS"). Errors are logged and swallowed: a failed df query
// shouldn't sour an otherwise successful mount.
func (e *Engine) refreshDriveInfo(ctx context.Context, traceID string, drive *model.Drive) {
	if drive.LoadedMedia == nil || drive.MountPoint == "" {
		return
	}
	var lines []string
	_, _, err := e.runner.Run(ctx, traceID, "df", []string{"-h", "--output=source,size,avail,target"}, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	if err != nil {
		e.log(traceID, fmt.Sprintf("df failed while refreshing drive %d capacity: %v", drive.SlotNumber, err))
		return
	}
	applyDfRows(drive, parse.ParseDf(joinLines(lines)))
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func applyDfRows(drive *model.Drive, rows []parse.DfRow) {
	for _, row := range rows {
		if row.Target != drive.MountPoint || drive.LoadedMedia == nil {
			continue
		}
		drive.LoadedMedia.SetCapacity(row.SizeBytes, row.AvailBytes)
		return
	}
}

// mountPointFor returns the Linux mount directory for a drive, per
// §4.4 LtfsMount: "{mount_point}/drive{slot}".
func (e *Engine) mountPointFor(drive *model.Drive) string {
	return filepath.Join(e.cfg.TapeLibrary.MountPoint, fmt.Sprintf("drive%d", drive.SlotNumber))
}

// ltfsBinary resolves a configured LTFS tool path, falling back to the
// bare name on $PATH.
func (e *Engine) ltfsBinary(name string) string {
	if e.cfg.TapeLibrary.LtfsPath == "" {
		return name
	}
	return filepath.Join(e.cfg.TapeLibrary.LtfsPath, name)
}

// extractLTFSCode is the local name for parse.ExtractLTFSCode (C3),
// used by Format/Ltfsck/the platform strategies to interpret tool
// output (§4.2, P8).
func extractLTFSCode(output string) (model.OperationStatus, bool) {
	return parse.ExtractLTFSCode(output)
}
