package bisect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// A StateStore loads and saves the state of a bisection.
// Saving always overwrites the whole previously saved state.
type StateStore interface {
	Load() (*State, error)
	Save(*State) error
}

// FileStore stores the state as an indented JSON file, which users may edit by hand
type FileStore struct {
	Path string // The path of the state file
}

// NewFileStore returns a store for the state file at the passed path
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and validates the state file.
// If the file does not exist, the returned error wraps [ErrNotStarted], every other failure wraps [ErrStorage].
func (f *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist, run bisect start first", ErrNotStarted, f.Path)
	} else if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: couldn't read %s", ErrStorage, f.Path), err)
	}
	state, err := decodeState(data)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: couldn't parse %s", ErrStorage, f.Path), err)
	}
	return state, nil
}

// Save writes the state to a temporary file next to the state file and renames it over the state file
func (f *FileStore) Save(state *State) error {
	data, err := encodeState(state)
	if err != nil {
		return errors.Join(fmt.Errorf("%w: couldn't encode state", ErrStorage), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errors.Join(fmt.Errorf("%w: couldn't create temporary state file", ErrStorage), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Join(fmt.Errorf("%w: couldn't write %s", ErrStorage, tmp.Name()), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("%w: couldn't write %s", ErrStorage, tmp.Name()), err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return errors.Join(fmt.Errorf("%w: couldn't replace %s", ErrStorage, f.Path), err)
	}
	return nil
}

// MemoryStore keeps the encoded state in memory. The zero value is a store without a started bisection.
type MemoryStore struct {
	data []byte
}

// Load decodes the kept state, returning ErrNotStarted if nothing was saved yet
func (m *MemoryStore) Load() (*State, error) {
	if m.data == nil {
		return nil, ErrNotStarted
	}
	state, err := decodeState(m.data)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return state, nil
}

// Save encodes the passed state and keeps it, replacing the previous one
func (m *MemoryStore) Save(state *State) error {
	data, err := encodeState(state)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	m.data = data
	return nil
}

// stateRecord mirrors State with pointers for the fields which have to be present
type stateRecord struct {
	ID        string     `json:"id"`
	StartedAt *time.Time `json:"startedAt"`

	RemoteName string `json:"remoteName"`

	HasGood *bool `json:"hasGood"`
	HasBad  *bool `json:"hasBad"`

	Log       []JudgedVersion `json:"log"`
	Installed []VersionRef    `json:"installed"`
}

func encodeState(state *State) ([]byte, error) {
	normalized := *state
	if normalized.Log == nil {
		normalized.Log = []JudgedVersion{}
	}
	if normalized.Installed == nil {
		normalized.Installed = []VersionRef{}
	}
	return json.MarshalIndent(normalized, "", "  ")
}

// decodeState parses a state and checks that it is consistent enough to be worked with
func decodeState(data []byte) (*State, error) {
	var record stateRecord
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return nil, err
	}

	if record.HasGood == nil {
		return nil, fmt.Errorf("field hasGood is missing")
	}
	if record.HasBad == nil {
		return nil, fmt.Errorf("field hasBad is missing")
	}

	state := &State{
		ID:         record.ID,
		StartedAt:  record.StartedAt,
		RemoteName: record.RemoteName,
		HasGood:    *record.HasGood,
		HasBad:     *record.HasBad,
		Log:        record.Log,
		Installed:  record.Installed,
	}
	if state.Log == nil {
		state.Log = []JudgedVersion{}
	}
	if state.Installed == nil {
		state.Installed = []VersionRef{}
	}

	for i, judged := range state.Log {
		if judged.SemanticVersion == "" {
			return nil, fmt.Errorf("log entry %d has no semanticVersion", i)
		}
		if !judged.Status.valid() {
			return nil, fmt.Errorf("log entry %d (%s) has invalid status %q", i, judged.SemanticVersion, judged.Status)
		}
		if judged.RemoteName != state.RemoteName {
			return nil, fmt.Errorf("log entry %d (%s) was judged on remote %q, but the bisection runs on remote %q", i, judged.SemanticVersion, judged.RemoteName, state.RemoteName)
		}
	}
	for i, installed := range state.Installed {
		if installed.SemanticVersion == "" {
			return nil, fmt.Errorf("installed entry %d has no semanticVersion", i)
		}
	}

	return state, nil
}
