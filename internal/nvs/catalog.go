package nvs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"golang.org/x/mod/semver"
)

// indexEntry is a single release listed in the index.json of a remote
type indexEntry struct {
	Version string   `json:"version"`
	Files   []string `json:"files"`
}

// RemoteCatalog lists the versions of a remote which are built for the configured os and architecture
type RemoteCatalog struct {
	Config *Config
	Client *http.Client
}

// NewRemoteCatalog returns a catalog using an http client with the configured timeout
func NewRemoteCatalog(cfg *Config) *RemoteCatalog {
	return &RemoteCatalog{
		Config: cfg,
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Versions fetches the index of the passed remote and returns its versions sorted ascending by semantic version
func (c *RemoteCatalog) Versions(ctx context.Context, remoteName string) ([]bisect.VersionRef, error) {
	uri, err := c.Config.RemoteURI(remoteName)
	if err != nil {
		return nil, err
	}

	body, err := get(ctx, c.Client, uri+"index.json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var index []indexEntry
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to parse index of remote %s", remoteName), err)
	}

	wantedFile := c.Config.indexFile()
	seen := make(map[string]bool, len(index))
	versions := []bisect.VersionRef{}
	for _, entry := range index {
		if !semver.IsValid(entry.Version) || seen[entry.Version] || !slices.Contains(entry.Files, wantedFile) {
			continue
		}
		seen[entry.Version] = true

		version := strings.TrimPrefix(entry.Version, "v")
		versions = append(versions, bisect.VersionRef{
			RemoteName:      remoteName,
			SemanticVersion: version,
			Arch:            c.Config.Arch,
			Local:           isDir(c.Config.VersionDir(remoteName, version, c.Config.Arch)),
		})
	}

	slices.SortStableFunc(versions, func(a, b bisect.VersionRef) int {
		return semver.Compare("v"+a.SemanticVersion, "v"+b.SemanticVersion)
	})

	return versions, nil
}

// get performs a GET request and returns the body if the response status is 200
func get(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("request to %s failed", url), err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("request to %s returned status %s", url, res.Status)
	}
	return res.Body, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
