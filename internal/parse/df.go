package parse

import (
	"strings"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// DfRow is one LTFS mount row from
// `df -h --output=source,size,avail,target`.
type DfRow struct {
	Source     string // "ltfs:<device>"
	SizeBytes  int64
	AvailBytes int64
	Target     string
}

// ParseDf extracts every row whose source begins with "ltfs:",
// converting the human-readable size/avail columns to bytes via
// model.SizeToB (P7). Header lines and non-ltfs rows are ignored.
func ParseDf(output string) []DfRow {
	var rows []DfRow
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		if !strings.HasPrefix(fields[0], "ltfs:") {
			continue
		}
		rows = append(rows, DfRow{
			Source:     fields[0],
			SizeBytes:  model.SizeToB(fields[1]),
			AvailBytes: model.SizeToB(fields[2]),
			Target:     fields[3],
		})
	}
	return rows
}
