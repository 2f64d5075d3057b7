package model

// Drive is a tape drive at a fixed slot/address, with a mutable
// device name and mount point as those are (re-)discovered by the
// status collector (§3).
type Drive struct {
	SlotNumber      int
	Address         string
	Serial          string
	DeviceName      string // Linux: /dev/sgX ; Windows: ChangerN / drive letter
	MountPoint      string // Linux directory, or Windows drive letter
	Status          LtfsStatus
	LoadedMedia     *Media
	FailedVolumeTags map[string]bool
	released        bool
}

// NewDrive creates a Drive from its static configuration.
func NewDrive(slotNumber int, address, serial string) *Drive {
	return &Drive{
		SlotNumber:       slotNumber,
		Address:          address,
		Serial:           serial,
		Status:           LtfsReset,
		FailedVolumeTags: make(map[string]bool),
	}
}

// IsFull reports whether the drive currently holds a cartridge.
func (d *Drive) IsFull() bool {
	return d.LoadedMedia != nil
}

// IsAssigned reports whether the drive has a mount point bound to it.
func (d *Drive) IsAssigned() bool {
	return d.MountPoint != ""
}

// IsReleased reports whether the drive has been explicitly released
// (unmounted and its LTFS device handle freed).
func (d *Drive) IsReleased() bool {
	return d.released
}

// AssignedTo records the mount point an LTFS mount succeeded onto.
func (d *Drive) AssignedTo(mountPoint string) {
	d.MountPoint = mountPoint
}

// Unassigned clears the mount point after an unmount/eject.
func (d *Drive) Unassigned() {
	d.MountPoint = ""
}

// Release marks the drive as having completed its release_device
// call; SetStatus will flip this back to false on the next status
// transition away from NO_MEDIA/RESET (I4).
func (d *Drive) Release() {
	d.released = true
}

// SetStatus applies a new LtfsStatus, enforcing I3/I4/I5: leaving
// NO_MEDIA/RESET clears the released flag, entering NO_MEDIA/RESET
// drops any loaded media, and entering LTFS_READ_ONLY write-protects
// the loaded media.
func (d *Drive) SetStatus(status LtfsStatus) {
	wasIdle := d.Status == LtfsNoMedia || d.Status == LtfsReset
	isIdle := status == LtfsNoMedia || status == LtfsReset
	d.Status = status
	if wasIdle && !isIdle {
		d.released = false
	}
	if isIdle {
		d.LoadedMedia = nil
	}
	if status == LtfsReadOnly && d.LoadedMedia != nil {
		d.LoadedMedia.IsWriteProtected = true
	}
}

// LoadMedia records that m is now loaded in this drive (I2).
func (d *Drive) LoadMedia(m *Media) {
	m.PlaceInDrive(d.SlotNumber)
	d.LoadedMedia = m
}

// UnloadMedia clears the drive's loaded-media relation and returns the
// cartridge that was loaded, if any.
func (d *Drive) UnloadMedia() *Media {
	m := d.LoadedMedia
	d.LoadedMedia = nil
	return m
}

// MarkFailed records that volumeTag failed in this drive (used by
// HandleCommonLtfsStatus's damaged-tape path).
func (d *Drive) MarkFailed(volumeTag string) {
	if d.FailedVolumeTags == nil {
		d.FailedVolumeTags = make(map[string]bool)
	}
	d.FailedVolumeTags[volumeTag] = true
}
