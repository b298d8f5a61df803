package nvs

import (
	"archive/tar"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name     string
	content  string
	linkname string
	dir      bool
}

// buildArchive returns a gzipped tarball holding the passed entries
func buildArchive(t *testing.T, entries []tarEntry) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		header := &tar.Header{Name: e.name, Mode: 0755}
		switch {
		case e.dir:
			header.Typeflag = tar.TypeDir
		case e.linkname != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.linkname
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(e.content))
		}
		require.NoError(t, tw.WriteHeader(header))
		if header.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func nodeArchive(t *testing.T, version string) []byte {
	root := fmt.Sprintf("node-v%s-linux-x64/", version)
	return buildArchive(t, []tarEntry{
		{name: root, dir: true},
		{name: root + "bin/", dir: true},
		{name: root + "bin/node", content: "#!/bin/sh\necho v" + version},
		{name: root + "lib/npm-cli.js", content: "console.log('npm')"},
		{name: root + "bin/npm", linkname: "../lib/npm-cli.js"},
	})
}

// fakeDist serves an index.json and, for every archive, a SHASUMS256.txt and the archive itself
type fakeDist struct {
	index    string
	archives map[string][]byte // Keyed by version
	checksum map[string]string // Overrides the served checksum of a version
}

func (d *fakeDist) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(d.index))
	})
	for version, archive := range d.archives {
		name := fmt.Sprintf("node-v%s-linux-x64.tar.gz", version)
		sum := digest.FromBytes(archive).Encoded()
		if override, ok := d.checksum[version]; ok {
			sum = override
		}
		shasums := strings.Join([]string{
			fmt.Sprintf("%s  node-v%s.tar.gz", strings.Repeat("0", 64), version),
			fmt.Sprintf("%s  %s", sum, name),
		}, "\n")

		mux.HandleFunc(fmt.Sprintf("/v%s/SHASUMS256.txt", version), func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(shasums))
		})
		mux.HandleFunc(fmt.Sprintf("/v%s/%s", version, name), func(w http.ResponseWriter, r *http.Request) {
			w.Write(archive)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, remoteURI string) *Config {
	cfg, err := GetConfig(strings.NewReader(fmt.Sprintf(`
home: %q
os: linux
arch: x64
remotes:
  node: %q
`, t.TempDir(), remoteURI)))
	require.NoError(t, err)
	return cfg
}
