package cmd

import (
	"io"
	"os"

	"github.com/DominicWuest/nodebisect/internal/nvs"
	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	configPath string
	verbosity  int
	quiet      bool

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "nodebisect",
	Short: "Find the Node.js version which introduced a regression by bisecting the releases of a remote",
	Long:  ``,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Formatter = &prefixed.TextFormatter{FullTimestamp: true}

		if quiet {
			verbosity = -1
		}

		// Set logger verbosity
		if verbosity < 0 {
			logger.SetOutput(io.Discard)
		} else if verbosity == 0 {
			logger.SetLevel(logrus.WarnLevel)
		} else if verbosity == 1 {
			logger.SetLevel(logrus.InfoLevel)
		} else if verbosity == 2 {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.TraceLevel)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "The config file to use (default $NVS_HOME/"+nvs.ConfigFileName+")")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Log more details, may be repeated up to three times")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Don't log anything")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// loadBisector reads the config and wires up a bisector working on the version home it describes
func loadBisector() (*bisect.Bisector, *nvs.Installer, *nvs.Config) {
	cfg, err := nvs.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config - %v", err)
	}
	logger.Debugf("Using version home %s and state file %s", cfg.Home, cfg.StateFile)

	installer := nvs.NewInstaller(cfg, logger)
	return &bisect.Bisector{
		Store: bisect.NewFileStore(cfg.StateFile),

		Catalog:   nvs.NewRemoteCatalog(cfg),
		Probe:     installer.Probe,
		Activator: installer.Activator,
		Installer: installer,

		Log: logger,
	}, installer, cfg
}
