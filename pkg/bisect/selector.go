package bisect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Result is the outcome of a selection round. Exactly one of its fields is set.
type Result struct {
	Candidate  *Candidate  // The version that is now active and should be judged next
	Regression *Regression // The pinpointed regression, set once the bisection is complete
}

// A Candidate is the version selected for testing
type Candidate struct {
	Version VersionRef // The selected version

	LastGood VersionRef // The newest good version before the search window
	FirstBad VersionRef // The oldest bad version after the search window

	Remaining int // How many untested versions are left in the search window, including Version
	StepsLeft int // Estimate of how many judgments are left until the regression is pinpointed

	Downloaded bool // Whether the version had to be downloaded before it could be activated
}

// A Regression represents a completed bisection
type Regression struct {
	FirstBad VersionRef // The version which introduced the regression. I.e. the oldest bad version
	LastGood VersionRef // The version preceding the regression. I.e. the newest good version

	// Skipped versions between LastGood and FirstBad.
	// If set, the regression may have been introduced by any of these instead of FirstBad.
	Skipped []VersionRef
}

func (r Result) String() string {
	if r.Regression != nil {
		return r.Regression.String()
	}
	if r.Candidate != nil {
		return r.Candidate.String()
	}
	return ""
}

func (c Candidate) String() string {
	verb := "Switched to"
	if c.Downloaded {
		verb = "Installed and switched to"
	}
	return fmt.Sprintf("Bisecting between good %s and bad %s: %d versions left to test (roughly %d steps)\n%s %s",
		c.LastGood.SemanticVersion, c.FirstBad.SemanticVersion, c.Remaining, c.StepsLeft, verb, c.Version.SemanticVersion)
}

func (r Regression) String() string {
	if len(r.Skipped) == 0 {
		return fmt.Sprintf("Broken by %s, last good version: %s", r.FirstBad.SemanticVersion, r.LastGood.SemanticVersion)
	}
	suspects := []string{}
	for _, v := range r.Skipped {
		suspects = append(suspects, v.SemanticVersion)
	}
	suspects = append(suspects, r.FirstBad.SemanticVersion)
	return fmt.Sprintf("Only skipped versions are left to test. Broken by any of %s, last good version: %s",
		strings.Join(suspects, ", "), r.LastGood.SemanticVersion)
}

// searchWindow is the part of the catalog that is left to be bisected.
// All fields hold indexes into the catalog.
type searchWindow struct {
	lastGood int
	firstBad int

	candidates []int // Unjudged versions between lastGood and firstBad
	local      []int // The candidates which are already installed
	skipped    []int // Skipped versions between lastGood and firstBad
}

// scanWindow finds the search window in the ascending catalog given the judgments keyed by semantic version.
//
// The first judged version of the catalog has to be good. The window then starts after the newest good version
// and ends at the first bad version. Reaching a bad version while good versions remain further along is an
// ordering violation, as the judgments then can't stem from a single regression.
func scanWindow(versions []VersionRef, judgments map[string]Status) (*searchWindow, error) {
	goodCount := 0
	for _, v := range versions {
		if judgments[v.SemanticVersion] == Good {
			goodCount++
		}
	}

	// Find the first version judged good or bad
	start := 0
	for start < len(versions) {
		if status := judgments[versions[start].SemanticVersion]; status == Good || status == Bad {
			break
		}
		start++
	}
	if start == len(versions) {
		return nil, fmt.Errorf("%w: none of the good or bad versions are listed", ErrBoundaryNotFound)
	}
	if judgments[versions[start].SemanticVersion] == Bad {
		if goodCount > 0 {
			return nil, fmt.Errorf("%w: bad version %s is older than every good version", ErrOrderingViolation, versions[start].SemanticVersion)
		}
		return nil, fmt.Errorf("%w: no good version older than %s is listed", ErrBoundaryNotFound, versions[start].SemanticVersion)
	}

	w := &searchWindow{lastGood: -1, firstBad: -1}
	for i := start; i < len(versions) && w.firstBad == -1; i++ {
		status, judged := judgments[versions[i].SemanticVersion]
		switch {
		case !judged:
			w.candidates = append(w.candidates, i)
			if versions[i].Local {
				w.local = append(w.local, i)
			}
		case status == Good:
			goodCount--
			w.lastGood = i
			// Everything found so far is older than a good version
			w.candidates, w.local, w.skipped = nil, nil, nil
		case status == Bad:
			if goodCount != 0 {
				return nil, fmt.Errorf("%w: good version %s is newer than bad version %s", ErrOrderingViolation, newerGood(versions[i+1:], judgments), versions[i].SemanticVersion)
			}
			w.firstBad = i
		case status == Skip:
			w.skipped = append(w.skipped, i)
		}
	}
	if w.firstBad == -1 {
		return nil, fmt.Errorf("%w: no bad version newer than %s is listed", ErrBoundaryNotFound, versions[w.lastGood].SemanticVersion)
	}

	return w, nil
}

// newerGood returns the first good version of the passed versions
func newerGood(versions []VersionRef, judgments map[string]Status) string {
	for _, v := range versions {
		if judgments[v.SemanticVersion] == Good {
			return v.SemanticVersion
		}
	}
	return "?"
}

// pick returns the catalog index of the version to test next.
// Installed candidates are preferred, among them the lower middle one is picked.
func (w searchWindow) pick() int {
	pool := w.candidates
	if len(w.local) > 0 {
		pool = w.local
	}
	return pool[len(pool)/2]
}

// selectNext selects the next version to test given the state, activates it and persists the state
func (b *Bisector) selectNext(ctx context.Context, state *State) (*Result, error) {
	log := b.log(state)

	versions, err := b.Catalog.Versions(ctx, state.RemoteName)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to list versions of remote %s", state.RemoteName), err)
	}

	w, err := scanWindow(versions, state.Judgments())
	if err != nil {
		return nil, err
	}

	lastGood, firstBad := versions[w.lastGood], versions[w.firstBad]
	log.Debugf("Good version %s (index %d), bad version %s (index %d), %d candidates of which %d are installed, %d skipped",
		lastGood.SemanticVersion, w.lastGood, firstBad.SemanticVersion, w.firstBad, len(w.candidates), len(w.local), len(w.skipped))

	if len(w.candidates) == 0 {
		regression := &Regression{FirstBad: firstBad, LastGood: lastGood}
		for _, i := range w.skipped {
			regression.Skipped = append(regression.Skipped, versions[i])
		}
		log.Infof("Found offending version %s, last good version %s", firstBad.SemanticVersion, lastGood.SemanticVersion)
		return &Result{Regression: regression}, nil
	}

	next := versions[w.pick()]
	candidate := &Candidate{
		Version:   next,
		LastGood:  lastGood,
		FirstBad:  firstBad,
		Remaining: len(w.candidates),
		StepsLeft: int(math.Ceil(math.Log2(float64(len(w.candidates))))),
	}
	log.Infof("Expected amount of steps left: ~%d", candidate.StepsLeft)

	if next.Local {
		log.Infof("Switching to installed version %s", next)
		if err := b.Activator.Activate(ctx, next); err != nil {
			return nil, errors.Join(fmt.Errorf("%w: couldn't switch to %s", ErrActivation, next), err)
		}
	} else {
		// Note the version before installing, s.t. an interrupted install can still be cleaned up
		state.addInstalled(next)
		if err := b.Store.Save(state); err != nil {
			return nil, err
		}
		log.Infof("Installing version %s", next)
		if err := b.Installer.InstallAndActivate(ctx, next); err != nil {
			return nil, errors.Join(fmt.Errorf("%w: couldn't install %s", ErrInstall, next), err)
		}
		candidate.Downloaded = true
	}

	if err := b.Store.Save(state); err != nil {
		return nil, err
	}
	return &Result{Candidate: candidate}, nil
}
