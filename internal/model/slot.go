package model

// StorageSlot is a cartridge slot at a fixed slot_number, either a
// regular storage element or an I/O port slot (§3).
type StorageSlot struct {
	SlotNumber int
	IsIO       bool
	Media      *Media
}

// NewStorageSlot creates an empty slot.
func NewStorageSlot(slotNumber int, isIO bool) *StorageSlot {
	return &StorageSlot{SlotNumber: slotNumber, IsIO: isIO}
}

// IsEmpty reports whether the slot currently holds no cartridge.
func (s *StorageSlot) IsEmpty() bool {
	return s.Media == nil
}

// Place stores m in this slot (I1).
func (s *StorageSlot) Place(m *Media) {
	m.PlaceInSlot(s.SlotNumber)
	s.Media = m
}

// Clear empties the slot and returns the cartridge that was there.
func (s *StorageSlot) Clear() *Media {
	m := s.Media
	s.Media = nil
	return m
}
