package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// VolumeTagLength is the fixed width of a cartridge barcode: a
// 6-character serial followed by a 2-character LTO generation code
// (e.g. "000063L7").
const VolumeTagLength = 8

// ErrInvalidVolumeTag is returned by ParseVolumeTag when the input is
// not exactly VolumeTagLength characters (I6).
var ErrInvalidVolumeTag = errors.New("volume tag must be exactly 8 characters")

// ParseVolumeTag validates tag and returns it unchanged, rejecting
// anything that isn't exactly 8 characters (I6, P5).
func ParseVolumeTag(tag string) (string, error) {
	if len(tag) != VolumeTagLength {
		return "", errors.Wrapf(ErrInvalidVolumeTag, "got %q (%d chars)", tag, len(tag))
	}
	return tag, nil
}

// TapeSerial returns the 6-character serial prefix of a volume tag.
func TapeSerial(tag string) string {
	if len(tag) < 6 {
		return tag
	}
	return tag[:6]
}

// GenShortName returns the 2-character LTO generation code suffix of
// a volume tag (e.g. "L7").
func GenShortName(tag string) string {
	if len(tag) < VolumeTagLength {
		return ""
	}
	return tag[6:8]
}

// IsCleanerTag reports whether a volume tag names a cleaning
// cartridge: by convention it begins with "CLN" or ends with "CL".
func IsCleanerTag(tag string) bool {
	return strings.HasPrefix(tag, "CLN") || strings.HasSuffix(tag, "CL")
}

// nativeCapacity is the uncompressed native capacity, in bytes, of
// each LTO generation this library is expected to carry (P6).
var nativeCapacity = map[string]int64{
	"L5": 150_000_000_000,
	"L6": 250_000_000_000,
	"L7": 600_000_000_000,
	"L8": 1_200_000_000_000,
	"L9": 1_800_000_000_000,
}

// NativeCapacity looks up the native capacity in bytes for an LTO
// generation short name (e.g. "L6"). The second return is false for
// an unrecognized generation.
func NativeCapacity(genShortName string) (int64, bool) {
	cap, ok := nativeCapacity[genShortName]
	return cap, ok
}

// SizeToB converts a df(1)-style size string ("1T", "500G", "10M",
// "2048", "") into a byte count (P7). A bare integer is interpreted as
// a count of 1024-byte blocks, matching df's default block size; an
// empty string is zero.
func SizeToB(size string) int64 {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0
	}
	var multiplier float64 = 1024 // bare integer => blocks
	numeric := size
	switch {
	case strings.HasSuffix(size, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(size, "T")
	case strings.HasSuffix(size, "G"):
		multiplier = 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(size, "G")
	case strings.HasSuffix(size, "M"):
		multiplier = 1024 * 1024
		numeric = strings.TrimSuffix(size, "M")
	case strings.HasSuffix(size, "none"):
		return 0
	}
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0
	}
	return int64(value * multiplier)
}
