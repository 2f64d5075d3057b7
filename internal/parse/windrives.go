package parse

import (
	"regexp"
	"strings"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// WindowsDriveRow is one row of `LtfsCmdDrives` output.
type WindowsDriveRow struct {
	AssignedLetter string // empty if unassigned
	Address        string
	Serial         string
	Status         model.LtfsStatus
}

var winDriveRe = regexp.MustCompile(`^(?P<assigned>\w?)\s+(?P<address>[\d.]+)\s+(?P<serial>\S+)\s+(?P<status>[A-Z_]+)`)

// ParseWindowsDrives parses `LtfsCmdDrives` output into one row per
// drive, used to update each drive's assigned letter, serial and
// LtfsStatus by name.
func ParseWindowsDrives(output string) []WindowsDriveRow {
	var rows []WindowsDriveRow
	for _, line := range strings.Split(output, "\n") {
		m := winDriveRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		names := winDriveRe.SubexpNames()
		group := make(map[string]string, len(names))
		for i, name := range names {
			if name != "" && i < len(m) {
				group[name] = m[i]
			}
		}
		rows = append(rows, WindowsDriveRow{
			AssignedLetter: group["assigned"],
			Address:        group["address"],
			Serial:         group["serial"],
			Status:         model.LtfsStatus(group["status"]),
		})
	}
	return rows
}
