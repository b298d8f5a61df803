package nvs

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	_ "crypto/sha256"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/dchest/uniuri"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
)

// Installer downloads, verifies and extracts node builds into the version home
type Installer struct {
	Config    *Config
	Client    *http.Client
	Activator Activator
	Probe     Probe

	Log *logrus.Logger // The log to which information gets printed to
}

// NewInstaller returns an installer using an http client with the configured timeout
func NewInstaller(cfg *Config, log *logrus.Logger) *Installer {
	return &Installer{
		Config:    cfg,
		Client:    &http.Client{Timeout: cfg.HTTPTimeout},
		Activator: Activator{Config: cfg},
		Probe:     Probe{Config: cfg},
		Log:       log,
	}
}

// InstallAndActivate installs the passed version and switches to it
func (i *Installer) InstallAndActivate(ctx context.Context, v bisect.VersionRef) error {
	if err := i.Install(ctx, v); err != nil {
		return err
	}
	return i.Activator.Activate(ctx, v)
}

// Install downloads the archive of the passed version, verifies it against the remote's checksums and extracts it
// into the version's directory. An existing installation of the version is replaced.
func (i *Installer) Install(ctx context.Context, v bisect.VersionRef) error {
	log := i.logger().WithField("version", v.Key())

	uri, err := i.Config.RemoteURI(v.RemoteName)
	if err != nil {
		return err
	}
	archive := i.Config.archiveName(v.SemanticVersion)
	versionURI := fmt.Sprintf("%sv%s/", uri, v.SemanticVersion)

	log.Debugf("Getting checksum of %s", archive)
	expected, err := i.checksum(ctx, versionURI+"SHASUMS256.txt", archive)
	if err != nil {
		return err
	}

	staging := filepath.Join(os.TempDir(), "nodebisect-"+uniuri.New())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	log.Infof("Downloading %s", versionURI+archive)
	archivePath := filepath.Join(staging, archive)
	if err := i.download(ctx, versionURI+archive, archivePath, expected); err != nil {
		return err
	}

	log.Debugf("Extracting %s", archivePath)
	extracted := filepath.Join(staging, "root")
	if err := extract(archivePath, extracted); err != nil {
		return errors.Join(fmt.Errorf("failed to extract %s", archive), err)
	}

	dir := i.Config.VersionDir(v.RemoteName, v.SemanticVersion, v.Arch)
	if err := place(extracted, dir); err != nil {
		return err
	}

	log.Infof("Installed %s to %s", v, dir)
	return nil
}

// Uninstall removes the installation of the passed version. The active version can't be removed.
func (i *Installer) Uninstall(v bisect.VersionRef) error {
	active, err := i.Probe.ActiveVersion()
	if err != nil {
		return err
	}
	if active != nil && active.Key() == v.Key() {
		return fmt.Errorf("version %s is in use", v)
	}

	dir := i.Config.VersionDir(v.RemoteName, v.SemanticVersion, v.Arch)
	i.logger().Infof("Removing %s", dir)
	return os.RemoveAll(dir)
}

// place copies src to dir. The copy is made next to dir and renamed into place,
// so dir either holds a complete build or doesn't exist.
func place(src, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return err
	}

	staging := dir + "-" + uniuri.New()
	if err := copy.Copy(src, staging, copy.Options{
		OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
	}); err != nil {
		os.RemoveAll(staging)
		return errors.Join(fmt.Errorf("failed to copy %s to %s", src, staging), err)
	}

	if err := os.RemoveAll(dir); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, dir); err != nil {
		os.RemoveAll(staging)
		return errors.Join(fmt.Errorf("failed to move %s to %s", staging, dir), err)
	}
	return nil
}

// checksum fetches the checksums file at the passed uri and returns the digest listed for the passed file
func (i *Installer) checksum(ctx context.Context, uri, file string) (digest.Digest, error) {
	body, err := get(ctx, i.Client, uri)
	if err != nil {
		return "", err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[1] != file {
			continue
		}
		d := digest.NewDigestFromEncoded(digest.SHA256, fields[0])
		if err := d.Validate(); err != nil {
			return "", errors.Join(fmt.Errorf("invalid checksum for %s", file), err)
		}
		return d, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no checksum for %s listed in %s", file, uri)
}

// download writes the file at the passed uri to path and verifies its digest
func (i *Installer) download(ctx context.Context, uri, path string, expected digest.Digest) error {
	body, err := get(ctx, i.Client, uri)
	if err != nil {
		return err
	}
	defer body.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	verifier := expected.Verifier()
	if _, err := io.Copy(io.MultiWriter(file, verifier), body); err != nil {
		return errors.Join(fmt.Errorf("download of %s failed", uri), err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("checksum mismatch for %s, expected %s", uri, expected)
	}
	return nil
}

// extract unpacks a gzipped tarball into dest, stripping the top-level directory of every entry
func extract(archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		// Strip the node-v<version>-<os>-<arch> directory
		_, name, _ := strings.Cut(strings.TrimPrefix(header.Name, "./"), "/")
		if name == "" {
			continue
		}
		target := filepath.Join(root, name)
		if !within(root, target) {
			return fmt.Errorf("archive entry %s escapes the extraction directory", header.Name)
		}
		// Links extracted earlier must not redirect this entry
		if err := noLinkedParents(root, target); err != nil {
			return errors.Join(fmt.Errorf("archive entry %s escapes the extraction directory", header.Name), err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|syscall.O_NOFOLLOW, header.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("archive entry %s links to absolute path %s", header.Name, header.Linkname)
			}
			if resolved := filepath.Join(filepath.Dir(target), header.Linkname); resolved != root && !within(root, resolved) {
				return fmt.Errorf("archive entry %s links to %s, which escapes the extraction directory", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// within reports whether path lies below root
func within(root, path string) bool {
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// noLinkedParents returns an error if any directory between root and target is a symlink
func noLinkedParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}
	path := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		path = filepath.Join(path, part)
		info, err := os.Lstat(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s is a symlink", path)
		}
	}
	return nil
}

func (i *Installer) logger() *logrus.Logger {
	if i.Log == nil {
		// Mute logger
		i.Log = logrus.New()
		i.Log.SetOutput(io.Discard)
	}
	return i.Log
}
