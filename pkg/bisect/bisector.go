package bisect

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// A VersionCatalog lists the versions known to a remote, sorted ascending by semantic version
type VersionCatalog interface {
	Versions(ctx context.Context, remoteName string) ([]VersionRef, error)
}

// An ActiveVersionProbe reports the version currently in use, or nil if none is
type ActiveVersionProbe interface {
	ActiveVersion() (*VersionRef, error)
}

// A VersionActivator switches to an already installed version
type VersionActivator interface {
	Activate(ctx context.Context, v VersionRef) error
}

// A VersionInstaller downloads, installs and then switches to a version
type VersionInstaller interface {
	InstallAndActivate(ctx context.Context, v VersionRef) error
}

// A Bisector records judgments and selects the versions to be tested next.
// All continuity between calls lives in the store, so a Bisector may be created anew for every invocation.
type Bisector struct {
	Store StateStore // Where the state of the bisection is persisted

	Catalog   VersionCatalog     // The catalog from which candidates are selected
	Probe     ActiveVersionProbe // Reports the version a judgment applies to
	Activator VersionActivator   // Switches to installed candidates
	Installer VersionInstaller   // Installs and switches to candidates which aren't installed yet

	Log *logrus.Logger // The log to which information gets printed to
}

// Start resets the state, discarding any previous bisection
func (b *Bisector) Start() error {
	state := NewState()
	if err := b.Store.Save(state); err != nil {
		return err
	}
	b.log(state).Info("Started new bisection")
	return nil
}

// Mark records the passed verdict for the currently active version.
// If the state then contains both a good and a bad judgment, the next version is selected and activated,
// and the result of this selection is returned. Otherwise, the returned result is nil.
func (b *Bisector) Mark(ctx context.Context, status Status) (*Result, error) {
	if !status.valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	state, err := b.Store.Load()
	if err != nil {
		return nil, err
	}

	active, err := b.Probe.ActiveVersion()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to get the active version"), err)
	}
	if active == nil {
		return nil, ErrNoActiveVersion
	}
	if state.RemoteName != "" && state.RemoteName != active.RemoteName {
		return nil, fmt.Errorf("cannot bisect between %s and %s versions: %w", state.RemoteName, active.RemoteName, ErrRemoteMismatch)
	}

	state.RemoteName = active.RemoteName
	switch status {
	case Good:
		state.HasGood = true
	case Bad:
		state.HasBad = true
	}
	state.Log = append(state.Log, JudgedVersion{VersionRef: *active, Status: status})

	b.log(state).Infof("Marked %s as %s", active, status)

	// Persist the judgment before selecting, s.t. it survives failing installs
	if err := b.Store.Save(state); err != nil {
		return nil, err
	}

	if !state.Selectable() {
		return nil, nil
	}
	return b.selectNext(ctx, state)
}

// Next selects and activates the next version to test without recording a judgment
func (b *Bisector) Next(ctx context.Context) (*Result, error) {
	state, err := b.Store.Load()
	if err != nil {
		return nil, err
	}
	if !state.Selectable() {
		return nil, ErrInsufficientJudgments
	}
	return b.selectNext(ctx, state)
}

// Status returns the latest verdict for every judged version, keyed by [VersionRef.Key].
// If no bisection was started, the returned map is empty.
func (b *Bisector) Status() (map[string]Status, error) {
	state, err := b.Store.Load()
	if errors.Is(err, ErrNotStarted) {
		return map[string]Status{}, nil
	} else if err != nil {
		return nil, err
	}
	return state.Statuses(), nil
}

// State returns the persisted state
func (b *Bisector) State() (*State, error) {
	return b.Store.Load()
}

// ForgetInstalled removes the passed versions from the versions installed during this bisection
func (b *Bisector) ForgetInstalled(removed []VersionRef) error {
	state, err := b.Store.Load()
	if err != nil {
		return err
	}

	removedKeys := make(map[string]bool, len(removed))
	for _, v := range removed {
		removedKeys[v.Key()] = true
	}
	kept := []VersionRef{}
	for _, v := range state.Installed {
		if !removedKeys[v.Key()] {
			kept = append(kept, v)
		}
	}
	state.Installed = kept

	return b.Store.Save(state)
}

// log returns the logger of this bisector with the bisection id attached.
// A bisector without a logger logs nothing.
func (b *Bisector) log(state *State) *logrus.Entry {
	if b.Log == nil {
		// Mute logger
		b.Log = logrus.New()
		b.Log.SetOutput(io.Discard)
	}
	return b.Log.WithField("bisection", state.ID)
}
