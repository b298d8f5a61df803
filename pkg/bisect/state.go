package bisect

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A Status is the verdict a user gave for a tested version
type Status string

const (
	Good Status = "good" // The version does not exhibit the regression
	Bad  Status = "bad"  // The version exhibits the regression
	Skip Status = "skip" // The version can't be tested
)

// ParseStatus converts the passed string to a status, ignoring case
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(s))
	if !status.valid() {
		return "", fmt.Errorf("%q is not a valid status, expected one of good, bad or skip", s)
	}
	return status, nil
}

func (s Status) valid() bool {
	return s == Good || s == Bad || s == Skip
}

// A VersionRef identifies one entry of a version catalog
type VersionRef struct {
	RemoteName      string `json:"remoteName"`      // The name of the remote listing this version
	SemanticVersion string `json:"semanticVersion"` // The version without a leading v, e.g. 20.11.1
	Arch            string `json:"arch"`            // The architecture of the build, e.g. x64
	Local           bool   `json:"local"`           // Whether this version is already installed
}

// Key returns the identifier of this version in the form remoteName/semanticVersion/arch
func (v VersionRef) Key() string {
	return fmt.Sprintf("%s/%s/%s", v.RemoteName, v.SemanticVersion, v.Arch)
}

func (v VersionRef) String() string {
	return v.Key()
}

// A JudgedVersion is a version together with the verdict it got
type JudgedVersion struct {
	VersionRef
	Status Status `json:"status"`
}

// State is the persisted state of a bisection.
type State struct {
	ID        string     `json:"id,omitempty"`        // Random identifier of this bisection, set by Start
	StartedAt *time.Time `json:"startedAt,omitempty"` // When this bisection was started

	RemoteName string `json:"remoteName,omitempty"` // The remote every judgment was made against. Empty until the first judgment

	HasGood bool `json:"hasGood"` // Whether at least one version was marked as good
	HasBad  bool `json:"hasBad"`  // Whether at least one version was marked as bad

	Log       []JudgedVersion `json:"log"`       // All judgments, in the order they were made
	Installed []VersionRef    `json:"installed"` // The versions downloaded during this bisection
}

// NewState returns the state of a freshly started bisection
func NewState() *State {
	now := time.Now().UTC()
	return &State{
		ID:        uuid.NewString(),
		StartedAt: &now,
		Log:       []JudgedVersion{},
		Installed: []VersionRef{},
	}
}

// Selectable reports whether enough judgments exist to select the next version
func (s *State) Selectable() bool {
	return s.HasGood && s.HasBad
}

// Judgments returns the verdict of every judged version keyed by its semantic version.
// If a version was judged multiple times, the latest judgment wins, which allows correcting a verdict by judging the version again.
func (s *State) Judgments() map[string]Status {
	judgments := make(map[string]Status, len(s.Log))
	for _, judged := range s.Log {
		judgments[judged.SemanticVersion] = judged.Status
	}
	return judgments
}

// Statuses returns the verdict of every judged version keyed by [VersionRef.Key], latest judgment winning
func (s *State) Statuses() map[string]Status {
	statuses := make(map[string]Status, len(s.Log))
	for _, judged := range s.Log {
		statuses[judged.Key()] = judged.Status
	}
	return statuses
}

// addInstalled notes the passed version as downloaded by this bisection. Versions already noted are not added twice.
func (s *State) addInstalled(v VersionRef) {
	for _, installed := range s.Installed {
		if installed.Key() == v.Key() {
			return
		}
	}
	v.Local = true
	s.Installed = append(s.Installed, v)
}
