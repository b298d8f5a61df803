package nvs

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the config file looked up in the nvs home directory
const ConfigFileName = "nodebisect.yml"

type configYaml struct {
	Home      string `yaml:"home"`
	StateFile string `yaml:"stateFile" default:".nvs_bisect.json"`

	OS   string `yaml:"os"`
	Arch string `yaml:"arch"`

	Remotes map[string]string `yaml:"remotes" default:"{\"node\": \"https://nodejs.org/dist/\"}"`

	HTTPTimeout  int `yaml:"httpTimeout" default:"300"`
	CleanWorkers int `yaml:"cleanWorkers" default:"4"`
}

// Config describes where versions are installed and where they are downloaded from
type Config struct {
	Home      string // The directory holding all installed versions, laid out as <home>/<remote>/<version>/<arch>
	StateFile string // The path to the bisection state file

	OS   string // The operating system builds are downloaded for, as named in node archives, e.g. linux or darwin
	Arch string // The architecture builds are downloaded for, as named in node archives, e.g. x64 or arm64

	Remotes map[string]string // The base URIs of the remotes, keyed by remote name. Every URI ends with a slash

	HTTPTimeout  time.Duration // The timeout of a single download
	CleanWorkers int           // How many versions get removed concurrently when cleaning up
}

// GetConfig reads in a config in yaml format from a reader and fills in the defaults of missing fields.
// An empty reader results in the default config.
func GetConfig(r io.Reader) (*Config, error) {
	var config configYaml

	// Read in yaml
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := defaults.Set(&config); err != nil {
		return nil, err
	}

	// Convert to Config struct
	cfg := Config{
		Home:      config.Home,
		StateFile: config.StateFile,

		OS:   config.OS,
		Arch: config.Arch,

		Remotes: make(map[string]string, len(config.Remotes)),

		HTTPTimeout:  time.Duration(config.HTTPTimeout) * time.Second,
		CleanWorkers: config.CleanWorkers,
	}

	if cfg.Home == "" {
		var err error
		if cfg.Home, err = defaultHome(); err != nil {
			return nil, err
		}
	}
	home, err := filepath.Abs(expandHome(cfg.Home))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("invalid home %s", cfg.Home), err)
	}
	cfg.Home = home

	if cfg.OS == "" {
		cfg.OS = runtime.GOOS
	}
	if cfg.OS != "linux" && cfg.OS != "darwin" {
		return nil, fmt.Errorf("unsupported os %s, only linux and darwin builds can be installed", cfg.OS)
	}
	if cfg.Arch == "" {
		cfg.Arch = nodeArch(runtime.GOARCH)
	}

	for name, uri := range config.Remotes {
		if _, err := url.ParseRequestURI(uri); err != nil {
			return nil, errors.Join(fmt.Errorf("invalid uri for remote %s", name), err)
		}
		if !strings.HasSuffix(uri, "/") {
			uri += "/"
		}
		cfg.Remotes[name] = uri
	}

	if cfg.CleanWorkers < 1 {
		return nil, fmt.Errorf("cleanWorkers has to be at least 1, got %d", cfg.CleanWorkers)
	}

	return &cfg, nil
}

// LoadConfig reads the config at the passed path.
// If the path is empty, the config file in the default home directory is read if it exists, otherwise the default config is used.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := defaultHome()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ConfigFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return GetConfig(strings.NewReader(""))
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg, err := GetConfig(file)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to read config %s", path), err)
	}
	return cfg, nil
}

// RemoteURI returns the base URI of the remote with the passed name
func (c *Config) RemoteURI(remoteName string) (string, error) {
	uri, ok := c.Remotes[remoteName]
	if !ok {
		return "", fmt.Errorf("unknown remote %s", remoteName)
	}
	return uri, nil
}

// VersionDir returns the directory a version is installed to
func (c *Config) VersionDir(remoteName, version, arch string) string {
	return filepath.Join(c.Home, remoteName, version, arch)
}

// CurrentLink returns the path of the link pointing to the active version
func (c *Config) CurrentLink() string {
	return filepath.Join(c.Home, "current")
}

// archiveName returns the file name of the archive of the passed version
func (c *Config) archiveName(version string) string {
	return fmt.Sprintf("node-v%s-%s-%s.tar.gz", version, c.OS, c.Arch)
}

// indexFile returns how a build for this config's os and arch is named in the files of a remote's index
func (c *Config) indexFile() string {
	if c.OS == "darwin" {
		return fmt.Sprintf("osx-%s-tar", c.Arch)
	}
	return fmt.Sprintf("%s-%s", c.OS, c.Arch)
}

func defaultHome() (string, error) {
	if home := os.Getenv("NVS_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Join(fmt.Errorf("couldn't determine the home directory, set NVS_HOME"), err)
	}
	return filepath.Join(userHome, ".nvs"), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(userHome, strings.TrimPrefix(path, "~"))
}

// nodeArch converts a GOARCH to the architecture name used by node archives
func nodeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	case "arm":
		return "armv7l"
	default:
		return goarch
	}
}
