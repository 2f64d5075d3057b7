package parse

import (
	"regexp"
	"strings"
)

// DeviceListEntry is one device resolved by `ltfs -o device_list`.
type DeviceListEntry struct {
	DeviceName string
	Address    string
	Serial     string
}

var deviceNameRe = regexp.MustCompile(`Device Name\s*=\s*(\S+)\s*\(([\d.]+)\)`)
var serialRe = regexp.MustCompile(`Serial Number\s*=\s*(\S+)`)

// ParseDeviceList extracts (device_name, address, serial) triples
// from `ltfs -o device_list` output. The tool prints one device per
// line-group; a "Device Name" line starts a new entry and the
// following "Serial Number" line (possibly on the same or a later
// line) completes it.
func ParseDeviceList(output string) []DeviceListEntry {
	var entries []DeviceListEntry
	var current *DeviceListEntry
	for _, line := range strings.Split(output, "\n") {
		if m := deviceNameRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entries = append(entries, *current)
			}
			current = &DeviceListEntry{DeviceName: m[1], Address: m[2]}
		}
		if m := serialRe.FindStringSubmatch(line); m != nil && current != nil {
			current.Serial = m[1]
		}
	}
	if current != nil {
		entries = append(entries, *current)
	}
	return entries
}
