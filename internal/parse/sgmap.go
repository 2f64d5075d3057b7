package parse

import (
	"regexp"
	"strings"
)

// SGDevice maps a tape drive or changer's serial number to its
// /dev/sg{N} path, as resolved from `ls /dev/sg -l`.
type SGDevice struct {
	Serial    string // empty for the changer entry
	IsChanger bool
	Path      string
}

var sgTapeRe = regexp.MustCompile(`Tape-\S*_(\S+)\s*->\s*(/dev/sg\d+)`)
var sgChangerRe = regexp.MustCompile(`Changer-\S*\s*->\s*(/dev/sg\d+)`)

// ParseSGDeviceMap scans `ls /dev/sg -l` output (udev-style symlinks)
// and maps each Tape-..._<serial> entry and the Changer-... entry to
// its /dev/sg{N} target.
func ParseSGDeviceMap(output string) []SGDevice {
	var devices []SGDevice
	for _, line := range strings.Split(output, "\n") {
		if m := sgTapeRe.FindStringSubmatch(line); m != nil {
			devices = append(devices, SGDevice{Serial: m[1], Path: m[2]})
			continue
		}
		if m := sgChangerRe.FindStringSubmatch(line); m != nil {
			devices = append(devices, SGDevice{IsChanger: true, Path: m[1]})
		}
	}
	return devices
}
