// Package tapehardware wires the C2 subprocess runner into the
// github.com/kbj/mtx changer library the teacher uses, and exposes the
// raw command surface (status/load/unload/transfer) the engine needs.
// Detailed status parsing is deliberately left to internal/parse
// rather than the mtx library's own view, because the spec's element
// grammar captures more (IMPORT/EXPORT flag, Sense Key sentinel,
// loaded-from-slot backreference) than that library surfaces.
package tapehardware

import (
	"context"
	"strconv"
	"strings"

	"github.com/kbj/mtx"
	"github.com/pkg/errors"

	"github.com/creatorflow-io/QualstarLibrary/internal/procexec"
)

// Changer drives the robotic media changer via mtx, the way the
// teacher's RealTapeLibrary.mtx field does, but backed by the C2
// Runner so every invocation is trace-addressable and cancellable.
// Every call builds its own mtx.Changer over a call-scoped provider
// (see scoped) rather than keeping one bound to shared state, so
// concurrent callers never race on the changer device path swapped in
// mid-flight by SetChangerDevice.
type Changer struct {
	provider *runnerProvider
}

// runnerProvider implements the Do(args ...string) ([]byte, error)
// seam mtx.NewChanger expects, adapted from the teacher's
// NewSpectraChanger/Changer.Do but executed through procexec.Runner
// instead of a bare exec.Command, so cancellation and trace-scoped
// line logging flow through the same seam every other tool uses.
type runnerProvider struct {
	runner        procexec.Runner
	mtxPath       string
	changerDevice string
	ctx           context.Context
	traceID       string
	onLine        func(string)
}

func (p *runnerProvider) Do(args ...string) ([]byte, error) {
	program := p.mtxPath
	if program == "" {
		program = "mtx"
	}
	fullArgs := append([]string{"-f", p.changerDevice}, args...)

	var lines []string
	onLine := func(line string) {
		lines = append(lines, line)
		if p.onLine != nil {
			p.onLine(line)
		}
	}

	exitCode, lastMessage, err := p.runner.Run(p.ctx, p.traceID, program, fullArgs, onLine)
	if err != nil {
		return nil, errors.Wrapf(err, "mtx %s", strings.Join(args, " "))
	}
	if exitCode != 0 {
		return []byte(strings.Join(lines, "\n")), errors.Errorf("mtx %s: exit %d: %s", strings.Join(args, " "), exitCode, lastMessage)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// NewChanger builds a Changer for the given changer device path
// (Linux: /dev/sgN ; Windows: ChangerN).
func NewChanger(runner procexec.Runner, mtxPath, changerDevice string) *Changer {
	provider := &runnerProvider{runner: runner, mtxPath: mtxPath, changerDevice: changerDevice, ctx: context.Background()}
	return &Changer{provider: provider}
}

// SetChangerDevice updates the changer device path used by every
// subsequent Do() call, for when it is only resolved at Initialize
// time (Linux: cross-referencing the SG device map).
func (c *Changer) SetChangerDevice(device string) {
	c.provider.changerDevice = device
}

// ChangerDevice returns the currently configured changer device path.
func (c *Changer) ChangerDevice() string {
	return c.provider.changerDevice
}

// scoped returns a copy of the Changer's provider bound to a specific
// ctx/traceID/onLine triple for one call, without mutating the shared
// Changer (so concurrent callers on different drives don't race on
// the provider's fields).
func (c *Changer) scoped(ctx context.Context, traceID string, onLine func(string)) *runnerProvider {
	return &runnerProvider{
		runner:        c.provider.runner,
		mtxPath:       c.provider.mtxPath,
		changerDevice: c.provider.changerDevice,
		ctx:           ctx,
		traceID:       traceID,
		onLine:        onLine,
	}
}

// Status runs `mtx status` and returns its raw combined output for
// internal/parse.ParseElements to interpret.
func (c *Changer) Status(ctx context.Context, traceID string, onLine func(string)) (string, error) {
	out, err := c.scoped(ctx, traceID, onLine).Do("status")
	return string(out), err
}

// Load issues `mtx load {slot} {drive}` via the mtx.Changer
// convenience method, the way the teacher's RealTapeLibrary.Load does,
// against a scoped provider bound to this call's ctx/traceID/onLine
// (the same pattern Status/Transfer use) so concurrent callers never
// race on the shared Changer's fields.
func (c *Changer) Load(ctx context.Context, traceID string, onLine func(string), slot, drive int) error {
	return mtx.NewChanger(c.scoped(ctx, traceID, onLine)).Load(slot, drive)
}

// Unload issues `mtx unload {slot} {drive}`.
func (c *Changer) Unload(ctx context.Context, traceID string, onLine func(string), slot, drive int) error {
	return mtx.NewChanger(c.scoped(ctx, traceID, onLine)).Unload(slot, drive)
}

// Transfer issues `mtx transfer {src} {dst}` directly against the
// provider: the mtx.Changer wrapper doesn't expose a Transfer
// convenience method, so this goes through the same Do() seam Load
// and Unload ultimately call.
func (c *Changer) Transfer(ctx context.Context, traceID string, onLine func(string), src, dst int) error {
	_, err := c.scoped(ctx, traceID, onLine).Do("transfer", strconv.Itoa(src), strconv.Itoa(dst))
	return err
}
