package parse

import (
	"regexp"
	"strings"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

var ltfsCodeRe = regexp.MustCompile(`LTFS\d{5}[EI]`)

// ExtractLTFSCode scans every line of a tool invocation's output for
// the LTFS<5 digits><E|I> status code pattern (P8). When multiple
// lines match, the last one wins, since later messages in a single
// invocation override earlier ones (e.g. a transient warning followed
// by the final outcome).
func ExtractLTFSCode(output string) (model.OperationStatus, bool) {
	var last string
	for _, line := range strings.Split(output, "\n") {
		if m := ltfsCodeRe.FindString(line); m != "" {
			last = m
		}
	}
	if last == "" {
		return "", false
	}
	return model.OperationStatus(last), true
}
