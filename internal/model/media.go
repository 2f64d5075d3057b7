package model

// Media is a physical cartridge, identified by its volume tag. A
// Media instance is created when first observed in a drive or slot
// and discarded once nothing references it (see Lifecycle, §3).
type Media struct {
	VolumeTag         string
	Capacity          *int64 // nil until populated after an LTFS mount
	Remaining         *int64 // nil until populated after an LTFS mount
	IsWriteProtected  bool
	StorageSlotNumber *int // mutually exclusive with DriveSlotNumber
	DriveSlotNumber   *int
	// OriginSlot is the storage slot this cartridge was loaded from,
	// captured from the Data Transfer element's "(Storage Element N
	// Loaded)" annotation. It survives PlaceInDrive clearing
	// StorageSlotNumber, so an Unload/Release can still send the
	// cartridge back to the slot it came from instead of the drive's
	// own slot number.
	OriginSlot *int
}

// NewMedia builds a Media for a freshly observed volume tag. Location
// is set by the caller via PlaceInSlot/PlaceInDrive.
func NewMedia(volumeTag string) *Media {
	return &Media{VolumeTag: volumeTag}
}

// IsCleaner reports whether this cartridge is a cleaning tape (derived
// from the volume tag, §3).
func (m *Media) IsCleaner() bool {
	return IsCleanerTag(m.VolumeTag)
}

// PlaceInSlot records that this cartridge lives in storage slot n,
// clearing any drive location (I1) and the origin slot it was loaded
// from, since it is now home.
func (m *Media) PlaceInSlot(n int) {
	m.StorageSlotNumber = &n
	m.DriveSlotNumber = nil
	m.OriginSlot = nil
}

// SetOriginSlot records the storage slot a Data Transfer element
// reported this cartridge as loaded from, so a later Unload/Release
// can return it there even after PlaceInDrive clears
// StorageSlotNumber.
func (m *Media) SetOriginSlot(n int) {
	m.OriginSlot = &n
}

// PlaceInDrive records that this cartridge is loaded in drive n,
// clearing any storage-slot location (I1).
func (m *Media) PlaceInDrive(n int) {
	m.DriveSlotNumber = &n
	m.StorageSlotNumber = nil
}

// Unlocated clears both location fields, e.g. when the changer has the
// cartridge in transit and no element currently reports it.
func (m *Media) Unlocated() {
	m.StorageSlotNumber = nil
	m.DriveSlotNumber = nil
}

// SetCapacity populates capacity/remaining after an LTFS mount.
func (m *Media) SetCapacity(capacity, remaining int64) {
	m.Capacity = &capacity
	m.Remaining = &remaining
}
