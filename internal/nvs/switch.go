package nvs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/dchest/uniuri"
)

// Probe reports the version the current link points to
type Probe struct {
	Config *Config
}

// ActiveVersion returns the version the current link points to, or nil if there is no current link
func (p Probe) ActiveVersion() (*bisect.VersionRef, error) {
	target, err := os.Readlink(p.Config.CurrentLink())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.Config.Home, target)
	}

	rel, err := filepath.Rel(p.Config.Home, target)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[0] == ".." {
		return nil, fmt.Errorf("current link %s points to %s, which is not a version directory", p.Config.CurrentLink(), target)
	}

	return &bisect.VersionRef{
		RemoteName:      parts[0],
		SemanticVersion: parts[1],
		Arch:            parts[2],
		Local:           true,
	}, nil
}

// Activator switches versions by repointing the current link
type Activator struct {
	Config *Config
}

// Activate points the current link to the passed installed version.
// The link is replaced atomically, s.t. there is always a current link once one was created.
func (a Activator) Activate(ctx context.Context, v bisect.VersionRef) error {
	dir := a.Config.VersionDir(v.RemoteName, v.SemanticVersion, v.Arch)
	if !isDir(dir) {
		return fmt.Errorf("version %s is not installed at %s", v, dir)
	}

	link := a.Config.CurrentLink()
	tmpLink := link + "-" + uniuri.New()
	if err := os.Symlink(dir, tmpLink); err != nil {
		return errors.Join(fmt.Errorf("failed to create link to %s", dir), err)
	}
	if err := os.Rename(tmpLink, link); err != nil {
		os.Remove(tmpLink)
		return errors.Join(fmt.Errorf("failed to replace %s", link), err)
	}
	return nil
}
