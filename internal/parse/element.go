// Package parse holds the C3 regex-driven parsers: pure functions from
// a block of tool output text to typed records. Every parser here
// ignores lines it doesn't recognize rather than erroring, since the
// tools' text output is a stable-but-not-contractual interface (§9).
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ElementKind distinguishes a storage slot from a drive in an mtx
// status dump.
type ElementKind string

const (
	ElementStorage      ElementKind = "Storage"
	ElementDataTransfer ElementKind = "Data Transfer"
)

// Element is one parsed "... Element N ..." line from `mtx status`.
type Element struct {
	Kind           ElementKind
	Slot           int
	IsIO           bool
	Full           bool
	LoadedFromSlot *int
	VolumeTag      string // empty if the element reported no tag
}

// ErrChangerNotReady is returned when the status text contains the
// "Sense Key=Not Ready" sentinel mtx emits for an offline changer.
var ErrChangerNotReady = errors.New("mtx: Sense Key=Not Ready")

var elementLineRe = regexp.MustCompile(
	`(?P<type>Storage|Data Transfer) Element\s+(?P<slot>\d+)\s*(?P<io>IMPORT/EXPORT)?:(?P<status>\S+)` +
		`(?:\s+\(Storage Element (?P<loadedSlot>\d+) Loaded\))?:VolumeTag\s*=\s*(?P<tag>\S+)?`)

var senseKeyRe = regexp.MustCompile(`Sense Key\s*=\s*Not Ready`)

// ParseElements scans raw `mtx status` output and returns every
// recognized Storage/Data Transfer Element line. Unmatched lines are
// silently skipped. If any line contains the "Sense Key=Not Ready"
// sentinel, ErrChangerNotReady is returned alongside whatever elements
// were parsed before it.
func ParseElements(output string) ([]Element, error) {
	var elements []Element
	var err error
	for _, line := range strings.Split(output, "\n") {
		if senseKeyRe.MatchString(line) {
			err = ErrChangerNotReady
			continue
		}
		m := elementLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		names := elementLineRe.SubexpNames()
		group := make(map[string]string, len(names))
		for i, name := range names {
			if name != "" && i < len(m) {
				group[name] = m[i]
			}
		}

		slot, convErr := strconv.Atoi(group["slot"])
		if convErr != nil {
			continue
		}
		el := Element{
			Slot:  slot,
			IsIO:  group["io"] == "IMPORT/EXPORT",
			Full:  strings.EqualFold(group["status"], "Full"),
			VolumeTag: group["tag"],
		}
		if group["type"] == string(ElementDataTransfer) {
			el.Kind = ElementDataTransfer
		} else {
			el.Kind = ElementStorage
		}
		if group["loadedSlot"] != "" {
			loaded, convErr := strconv.Atoi(group["loadedSlot"])
			if convErr == nil {
				el.LoadedFromSlot = &loaded
			}
		}
		elements = append(elements, el)
	}
	return elements, err
}
