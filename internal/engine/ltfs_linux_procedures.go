package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/parse"
)

// linuxLTFS is the Linux implementation of LTFSProcedures (§4.4
// "Linux:"), driving the ltfs/ltfsck/mkltfs binaries over ordinary
// mount points.
type linuxLTFS struct{}

// NewLinuxProcedures returns the Linux platform strategy.
func NewLinuxProcedures() LTFSProcedures { return linuxLTFS{} }

func (linuxLTFS) Initialize(ctx context.Context, traceID string, e *Engine) error {
	e.runner.Run(ctx, traceID, "umount", []string{"-a", "-t", "fuse.ltfs"}, func(line string) { e.log(traceID, line) })
	time.Sleep(5 * time.Second)

	var deviceListLines []string
	_, _, err := e.runner.Run(ctx, traceID, e.ltfsBinary("ltfs"), []string{"-o", "device_list"}, func(line string) {
		deviceListLines = append(deviceListLines, line)
	})
	if err != nil {
		return fmt.Errorf("ltfs -o device_list: %w", err)
	}
	entries := parse.ParseDeviceList(joinLines(deviceListLines))

	e.eachDrive(func(drive *model.Drive) {
		for _, entry := range entries {
			if entry.Address == drive.Address {
				drive.DeviceName = entry.DeviceName
				if drive.Serial == "" {
					drive.Serial = entry.Serial
				}
			}
		}
	})

	var sgLines []string
	_, _, err = e.runner.Run(ctx, traceID, "ls", []string{"/dev/sg", "-l"}, func(line string) {
		sgLines = append(sgLines, line)
	})
	if err != nil {
		return fmt.Errorf("ls /dev/sg -l: %w", err)
	}
	sgDevices := parse.ParseSGDeviceMap(joinLines(sgLines))
	for _, dev := range sgDevices {
		if dev.IsChanger {
			e.changer.SetChangerDevice(dev.Path)
			continue
		}
		e.eachDrive(func(drive *model.Drive) {
			if drive.Serial != "" && drive.Serial == dev.Serial && drive.DeviceName == "" {
				drive.DeviceName = dev.Path
			}
		})
	}
	return nil
}

func (linuxLTFS) CollectDriveStatus(ctx context.Context, traceID string, e *Engine) error {
	return nil
}

func (linuxLTFS) Mount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	mountPoint := e.mountPointFor(drive)
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return model.StatusFailed, fmt.Sprintf("creating mount point %s: %v", mountPoint, err)
	}

	if alreadyMounted(e, traceID, drive.DeviceName, mountPoint) {
		drive.AssignedTo(mountPoint)
		return model.StatusSucceeded, model.StatusSucceeded.Message()
	}

	var lines []string
	exitCode, lastMessage, err := e.runner.Run(ctx, traceID, e.ltfsBinary("ltfs"), []string{"-o", "devname=" + drive.DeviceName, mountPoint}, func(line string) {
		lines = append(lines, line)
		e.log(traceID, line)
	})
	code, found := extractLTFSCode(joinLines(lines))
	if !found {
		if err != nil || exitCode != 0 {
			return model.StatusFailed, lastMessage
		}
		code = model.LTFS11031I
	}
	if code == model.LTFS11031I || code.IsSuccess() {
		drive.AssignedTo(mountPoint)
	}
	return code, code.Message()
}

func alreadyMounted(e *Engine, traceID, deviceName, mountPoint string) bool {
	var lines []string
	_, _, err := e.runner.Run(context.Background(), traceID, "df", []string{"-h", "--output=source,size,avail,target"}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return false
	}
	for _, row := range parse.ParseDf(joinLines(lines)) {
		if row.Target == mountPoint {
			return true
		}
	}
	return false
}

func (linuxLTFS) Unmount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	mountPoint := drive.MountPoint
	if mountPoint == "" {
		mountPoint = e.mountPointFor(drive)
	}

	if alreadyMounted(e, traceID, drive.DeviceName, mountPoint) {
		exitCode, lastMessage, err := e.runner.Run(ctx, traceID, "umount", []string{mountPoint}, func(line string) { e.log(traceID, line) })
		if err != nil || exitCode != 0 {
			dropped := pollUntil(ctx, 5*time.Second, 5*time.Second, 15*time.Second, func() bool {
				return !alreadyMounted(e, traceID, drive.DeviceName, mountPoint)
			})
			if !dropped {
				return model.StatusFailed, fmt.Sprintf("umount %s still mounted: %s", mountPoint, lastMessage)
			}
		}
	}
	drive.Unassigned()

	if drive.IsReleased() {
		return model.StatusNoAction, model.StatusNoAction.Message()
	}

	var lines []string
	_, lastMessage, err := e.runner.Run(ctx, traceID, e.ltfsBinary("ltfs"), []string{"-o", "devname=" + drive.DeviceName, "-o", "release_device"}, func(line string) {
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
	if code == model.LTFS12035E {
		drive.Release()
		return model.StatusSucceeded, "rewind failed, drive or tape likely damaged; release allowed to proceed so the cartridge can still be ejected"
	}
	drive.Release()
	return code, code.Message()
}

func (linuxLTFS) DoMountInternal(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	status, msg := linuxLTFS{}.Mount(ctx, traceID, e, drive)
	if status == model.LTFS16087E || status == model.LTFS16021E {
		time.Sleep(10 * time.Second)
		ckStatus, ckMsg := e.runLtfsck(ctx, traceID, drive)
		if ckStatus != model.LTFS16022I {
			status, msg = e.HandleCommonLtfsStatus(ctx, traceID, drive, ckStatus, ckMsg)
			return status, msg
		}
		time.Sleep(5 * time.Second)
		status, msg = linuxLTFS{}.Mount(ctx, traceID, e, drive)
	}
	return e.HandleCommonLtfsStatus(ctx, traceID, drive, status, msg)
}

func (linuxLTFS) DoUnmountThenUnload(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string) {
	return linuxLTFS{}.Unmount(ctx, traceID, e, drive)
}
