// Package engine implements the Library Control Engine: the in-memory
// domain model together with the per-drive operation orchestrator
// (C4/C5/C6 of the spec). Engine owns Drives/Slots/Operations and is
// constructed once at startup and released on shutdown (§9 design
// note: "Global mutable library state").
package engine

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/config"
	"github.com/creatorflow-io/QualstarLibrary/internal/lock"
	"github.com/creatorflow-io/QualstarLibrary/internal/logutil"
	"github.com/creatorflow-io/QualstarLibrary/internal/model"
	"github.com/creatorflow-io/QualstarLibrary/internal/procexec"
	"github.com/creatorflow-io/QualstarLibrary/internal/repo"
	"github.com/creatorflow-io/QualstarLibrary/internal/tapehardware"
)

const (
	// DriveLockTTL is the TTL for a per-drive lock held for the
	// duration of any per-drive LTFS action (§4.4).
	DriveLockTTL = 5 * time.Minute
	// ChangerLockTTL is the TTL for the global changer lock held for
	// the duration of any robot motion (§4.4).
	ChangerLockTTL = 5 * time.Minute
	// ChangerShortLockTTL is the TTL for short, bounded changer
	// acquisitions (§4.4). The playbooks in this package all acquire
	// the changer with ChangerLockTTL and do not reference it.
	ChangerShortLockTTL = 2 * time.Minute

	// StatusCacheWindow is how long collect_status(force=false) trusts
	// its last refresh before re-querying mtx (§4.3, P10).
	StatusCacheWindow = 15 * time.Second

	// ReplyRaceWindow is how long the operation wrapper waits for an
	// early reply before returning an Ongoing snapshot (§4.4, §5).
	ReplyRaceWindow = 15 * time.Second

	// DefaultPollAdvisory is the wait_before_next_trace advisory set on
	// every freshly registered Operation (§4.4).
	DefaultPollAdvisory = 30 * time.Second

	// BusyAdvisory is the wait_before_next advisory returned with
	// DriveBusy/MtxBusy (§4.4).
	BusyAdvisory = 15 * time.Second
)

// LTFSProcedures is the platform strategy interface C6 implements
// once for Linux and once for Windows, sharing the orchestrator and
// HandleCommonLtfsStatus (§4.4, §9).
type LTFSProcedures interface {
	// Initialize performs platform-specific startup discovery (§4.3
	// initialize()): Linux unmounts everything and resolves device
	// names via the SG device map; Windows runs CollectDriveStatus,
	// recording any drive letters already assigned (its changer device
	// comes from the MtxChanger configuration).
	Initialize(ctx context.Context, traceID string, e *Engine) error
	// CollectDriveStatus performs any platform-specific status refresh
	// beyond `mtx status`+`df` (§4.3: Windows additionally runs
	// LtfsCmdDrives). The Linux implementation no-ops.
	CollectDriveStatus(ctx context.Context, traceID string, e *Engine) error
	// Mount performs a plain LTFS mount with no robot motion.
	Mount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string)
	// Unmount performs a plain LTFS unmount/release with no robot
	// motion.
	Unmount(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string)
	// DoMountInternal is the richer post-load mount sequence, including
	// the inconsistent-tape recovery loop (§4.4).
	DoMountInternal(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string)
	// DoUnmountThenUnload runs Unmount and, on the Windows strategy,
	// additionally unassigns the drive letter (§4.4 override). The
	// Linux strategy's implementation is just Unmount.
	DoUnmountThenUnload(ctx context.Context, traceID string, e *Engine, drive *model.Drive) (model.OperationStatus, string)
}

// Engine is the process-wide library control engine.
type Engine struct {
	cfg    *config.Config
	logger *logutil.Logger
	runner procexec.Runner
	locker lock.Locker
	repo   repo.OperationRepository
	ltfs   LTFSProcedures

	changer *tapehardware.Changer

	// modelMu protects Drives, Slots and mediaByTag: all structural
	// reads/writes to the domain model go through it (§5).
	modelMu sync.Mutex
	drives  map[int]*model.Drive
	slots   map[int]*model.StorageSlot
	mediaByTag map[string]*model.Media

	// knownSlots is the set of storage slot numbers mtx status reported
	// on the first successful CollectStatus after Initialize. mtx is
	// authoritative for slot topology exactly once; after that, a slot
	// number absent from this set is treated the same as an unknown
	// drive address (§4.3).
	knownSlots        map[int]bool
	slotTopologyFrozen bool

	lastRefresh   time.Time
	lastRefreshMu sync.Mutex
	initOnce      sync.Once

	Operations *model.OperationRegistry

	schedMu sync.Mutex
	sched   map[string]*inflightTask

	sinksMu sync.Mutex
	sinks   []EventSink
}

// New constructs an Engine from configuration. It does not yet touch
// hardware; call Initialize before the first request.
func New(cfg *config.Config, logger *logutil.Logger, runner procexec.Runner, locker lock.Locker, repository repo.OperationRepository, ltfs LTFSProcedures) *Engine {
	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		runner:     runner,
		locker:     locker,
		repo:       repository,
		ltfs:       ltfs,
		drives:     make(map[int]*model.Drive),
		slots:      make(map[int]*model.StorageSlot),
		mediaByTag: make(map[string]*model.Media),
		knownSlots: make(map[int]bool),
		Operations: model.NewOperationRegistry(),
		sched:      make(map[string]*inflightTask),
	}
	e.changer = tapehardware.NewChanger(runner, cfg.TapeLibrary.MtxPath, changerDeviceFromConfig(cfg))
	for _, dc := range cfg.TapeLibrary.Drives {
		e.drives[dc.SlotNumber] = model.NewDrive(dc.SlotNumber, dc.Address, dc.Serial)
	}
	return e
}

func changerDeviceFromConfig(cfg *config.Config) string {
	// Linux names the changer's SCSI generic device; Windows names it
	// ChangerN (§6). Both are plain strings mtx -f accepts.
	if cfg.TapeLibrary.MtxChanger != 0 {
		return "Changer" + strconv.Itoa(cfg.TapeLibrary.MtxChanger)
	}
	return "" // resolved during Initialize on Linux via the sg device map
}

// Logger exposes the Engine's logger to other packages that need to
// mirror lines under a trace id (e.g. httpapi's 404/405 handlers).
func (e *Engine) Logger() *logutil.Logger { return e.logger }

// DriveSnapshot is a byte-value copy of a Drive for JSON responses, so
// readers never race with structural model updates (§5).
type DriveSnapshot = model.Drive

// Drives returns a snapshot of every configured drive, ordered by
// slot number.
func (e *Engine) Drives() []model.Drive {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	out := make([]model.Drive, 0, len(e.drives))
	for _, slot := range sortedKeys(e.drives) {
		out = append(out, *e.drives[slot])
	}
	return out
}

// Slots returns a snapshot of every known storage slot, ordered by
// slot number.
func (e *Engine) Slots() []model.StorageSlot {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	out := make([]model.StorageSlot, 0, len(e.slots))
	for _, slot := range sortedKeys(e.slots) {
		out = append(out, *e.slots[slot])
	}
	return out
}

// Media returns a snapshot of every currently known cartridge.
func (e *Engine) Media() []model.Media {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	out := make([]model.Media, 0, len(e.mediaByTag))
	for _, tag := range sortedStringKeys(e.mediaByTag) {
		out = append(out, *e.mediaByTag[tag])
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
