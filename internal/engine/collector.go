package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/parse"
)

// CollectStatus refreshes C1 from C2+C3 (§4.3). It is rate-limited to
// once per StatusCacheWindow unless force is true (P10).
func (e *Engine) CollectStatus(ctx context.Context, traceID string, force bool) error {
	e.lastRefreshMu.Lock()
	stale := force || time.Since(e.lastRefresh) >= StatusCacheWindow
	if !stale {
		e.lastRefreshMu.Unlock()
		return nil
	}
	e.lastRefresh = time.Now()
	e.lastRefreshMu.Unlock()

	out, err := e.changer.Status(ctx, traceID, func(line string) { e.log(traceID, line) })
	if err != nil {
		e.log(traceID, fmt.Sprintf("mtx status failed: %v", err))
		return err
	}

	elements, parseErr := parse.ParseElements(out)
	e.applyElements(traceID, elements)
	if parseErr != nil {
		e.log(traceID, fmt.Sprintf("mtx status: %v", parseErr))
	}

	if err := e.ltfs.CollectDriveStatus(ctx, traceID, e); err != nil {
		e.log(traceID, fmt.Sprintf("platform drive status refresh failed: %v", err))
	}
	return parseErr
}

// driveBySlot looks up a configured drive under the model lock. The
// platform strategy files use this instead of reaching into e.drives
// directly, even though they share the package, to keep every access
// to the model funnelled through one lock discipline.
func (e *Engine) driveBySlot(slot int) *model.Drive {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	return e.drives[slot]
}

// eachDrive calls fn for every configured drive, in slot order, while
// holding modelMu for the duration of the call to fn(slot). Used by
// CollectDriveStatus implementations that update several drives from
// one batched subprocess call.
func (e *Engine) eachDrive(fn func(drive *model.Drive)) {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	for _, slot := range sortedKeys(e.drives) {
		fn(e.drives[slot])
	}
}

// applyElements reconciles parsed mtx status elements into the model
// (§4.3): unknown drive addresses are ignored with a warning, and so
// are storage slots outside the topology latched on the first
// successful call (see knownSlots); a tag reported in two elements at
// once resolves to the lower-numbered storage slot.
func (e *Engine) applyElements(traceID string, elements []parse.Element) {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()

	if !e.slotTopologyFrozen {
		for _, el := range elements {
			if el.Kind == parse.ElementStorage {
				e.knownSlots[el.Slot] = true
			}
		}
		e.slotTopologyFrozen = true
	}

	tagOwner := make(map[string]int) // volume_tag -> storage slot number, lowest wins
	for _, el := range elements {
		if el.VolumeTag == "" || el.Kind != parse.ElementStorage {
			continue
		}
		if _, err := model.ParseVolumeTag(el.VolumeTag); err != nil {
			continue // reported and skipped below, when this element is applied
		}
		if existing, ok := tagOwner[el.VolumeTag]; !ok || el.Slot < existing {
			tagOwner[el.VolumeTag] = el.Slot
		}
	}

	sorted := make([]parse.Element, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		// Storage elements before Data Transfer, so a slot reported empty
		// drops its Media from mediaByTag before a drive element that now
		// holds the same tag is applied.
		return sorted[i].Kind == parse.ElementStorage && sorted[j].Kind == parse.ElementDataTransfer
	})

	for _, el := range sorted {
		switch el.Kind {
		case parse.ElementDataTransfer:
			drive, ok := e.drives[el.Slot]
			if !ok {
				e.log(traceID, fmt.Sprintf("warning: mtx status reports unknown drive element %d, ignoring", el.Slot))
				continue
			}
			if !el.Full || el.VolumeTag == "" {
				drive.UnloadMedia()
				continue
			}
			if _, err := model.ParseVolumeTag(el.VolumeTag); err != nil {
				e.log(traceID, fmt.Sprintf("warning: drive %d reports malformed volume tag %q, ignoring element: %v", el.Slot, el.VolumeTag, err))
				continue
			}
			if owner, ok := tagOwner[el.VolumeTag]; ok {
				e.log(traceID, fmt.Sprintf("warning: volume tag %s reported in both drive %d and storage slot %d, storage slot wins", el.VolumeTag, el.Slot, owner))
				drive.UnloadMedia()
				continue
			}
			media := e.mediaByTag[el.VolumeTag]
			if media == nil {
				media = model.NewMedia(el.VolumeTag)
				e.mediaByTag[el.VolumeTag] = media
			}
			if el.LoadedFromSlot != nil {
				media.SetOriginSlot(*el.LoadedFromSlot)
			}
			drive.LoadMedia(media)
		case parse.ElementStorage:
			if !e.knownSlots[el.Slot] {
				e.log(traceID, fmt.Sprintf("warning: mtx status reports unknown storage slot %d, ignoring", el.Slot))
				continue
			}
			slot, ok := e.slots[el.Slot]
			if !ok {
				slot = model.NewStorageSlot(el.Slot, el.IsIO)
				e.slots[el.Slot] = slot
			}
			if !el.Full || el.VolumeTag == "" {
				if m := slot.Clear(); m != nil {
					delete(e.mediaByTag, m.VolumeTag)
				}
				continue
			}
			if _, err := model.ParseVolumeTag(el.VolumeTag); err != nil {
				e.log(traceID, fmt.Sprintf("warning: storage slot %d reports malformed volume tag %q, ignoring element: %v", el.Slot, el.VolumeTag, err))
				continue
			}
			if owner := tagOwner[el.VolumeTag]; owner != el.Slot {
				e.log(traceID, fmt.Sprintf("warning: volume tag %s reported in storage slots %d and %d, lower-numbered slot wins", el.VolumeTag, owner, el.Slot))
				if m := slot.Clear(); m != nil && m.VolumeTag != el.VolumeTag {
					delete(e.mediaByTag, m.VolumeTag)
				}
				continue
			}
			media := e.mediaByTag[el.VolumeTag]
			if media == nil {
				media = model.NewMedia(el.VolumeTag)
				e.mediaByTag[el.VolumeTag] = media
			}
			slot.Place(media)
		}
	}
}

// Initialize runs the §4.3 initialize() sequence once before the first
// CollectStatus: materialize drives (already done in New), then
// delegate to the platform strategy for device-name/changer discovery.
func (e *Engine) Initialize(ctx context.Context, traceID string) error {
	return e.ltfs.Initialize(ctx, traceID, e)
}
