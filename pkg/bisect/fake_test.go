package bisect

import (
	"context"
	"fmt"
)

// fakeWorld is an in-memory catalog, probe, activator and installer for a single remote
type fakeWorld struct {
	remote   string
	versions []string
	local    map[string]bool

	active *VersionRef

	activated  []string
	installs   []string
	installErr error
}

func newFakeWorld(versions []string, local ...string) *fakeWorld {
	w := &fakeWorld{
		remote:   "node",
		versions: versions,
		local:    make(map[string]bool),
	}
	for _, v := range local {
		w.local[v] = true
	}
	return w
}

func (w *fakeWorld) ref(version string) VersionRef {
	return VersionRef{RemoteName: w.remote, SemanticVersion: version, Arch: "x64", Local: w.local[version]}
}

// use makes the passed version the active one, as if the user switched to it by hand
func (w *fakeWorld) use(version string) {
	ref := w.ref(version)
	w.active = &ref
}

func (w *fakeWorld) bisector() *Bisector {
	return &Bisector{
		Store:     &MemoryStore{},
		Catalog:   w,
		Probe:     w,
		Activator: w,
		Installer: w,
	}
}

func (w *fakeWorld) Versions(ctx context.Context, remoteName string) ([]VersionRef, error) {
	if remoteName != w.remote {
		return nil, fmt.Errorf("unknown remote %s", remoteName)
	}
	refs := make([]VersionRef, len(w.versions))
	for i, v := range w.versions {
		refs[i] = w.ref(v)
	}
	return refs, nil
}

func (w *fakeWorld) ActiveVersion() (*VersionRef, error) {
	return w.active, nil
}

func (w *fakeWorld) Activate(ctx context.Context, v VersionRef) error {
	w.activated = append(w.activated, v.SemanticVersion)
	w.use(v.SemanticVersion)
	return nil
}

func (w *fakeWorld) InstallAndActivate(ctx context.Context, v VersionRef) error {
	if w.installErr != nil {
		return w.installErr
	}
	w.installs = append(w.installs, v.SemanticVersion)
	w.local[v.SemanticVersion] = true
	w.use(v.SemanticVersion)
	return nil
}

func versionRange(major, count int) []string {
	versions := make([]string, count)
	for i := range count {
		versions[i] = fmt.Sprintf("%d.%d.0", major, i)
	}
	return versions
}
