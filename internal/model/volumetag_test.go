package model

import "testing"

func TestParseVolumeTag(t *testing.T) {
	tag, err := ParseVolumeTag("000063L7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "000063L7" {
		t.Fatalf("got %q", tag)
	}
}

func TestParseVolumeTagRejectsWrongLength(t *testing.T) {
	cases := []string{"", "SHORT", "000063L78", "0000063L7"}
	for _, tc := range cases {
		if _, err := ParseVolumeTag(tc); err == nil {
			t.Errorf("ParseVolumeTag(%q): expected error, got none", tc)
		}
	}
}

func TestTapeSerialAndGenShortName(t *testing.T) {
	if got := TapeSerial("000063L7"); got != "000063" {
		t.Errorf("TapeSerial: got %q", got)
	}
	if got := GenShortName("000063L7"); got != "L7" {
		t.Errorf("GenShortName: got %q", got)
	}
}

func TestIsCleanerTag(t *testing.T) {
	if !IsCleanerTag("CLN001L1") {
		t.Error("expected CLN-prefixed tag to be a cleaner")
	}
	if !IsCleanerTag("000001CL") {
		t.Error("expected CL-suffixed tag to be a cleaner")
	}
	if IsCleanerTag("000063L7") {
		t.Error("expected ordinary tag not to be a cleaner")
	}
}

func TestNativeCapacity(t *testing.T) {
	cap, ok := NativeCapacity("L7")
	if !ok || cap != 600_000_000_000 {
		t.Errorf("got %d, %v", cap, ok)
	}
	if _, ok := NativeCapacity("L99"); ok {
		t.Error("expected unknown generation to report false")
	}
}

func TestSizeToB(t *testing.T) {
	cases := map[string]int64{
		"":     0,
		"2048": 2048 * 1024,
		"10M":  10 * 1024 * 1024,
		"500G": 500 * 1024 * 1024 * 1024,
		"1T":   1024 * 1024 * 1024 * 1024,
	}
	for input, want := range cases {
		if got := SizeToB(input); got != want {
			t.Errorf("SizeToB(%q) = %d, want %d", input, got, want)
		}
	}
}
