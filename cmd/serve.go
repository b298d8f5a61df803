package cmd

import (
	"fmt"

	"github.com/DominicWuest/nodebisect/internal/server"
	"github.com/phayes/freeport"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bisection over http",
	Long: `Start a server through which the bisection can be driven over http.

The server offers the same operations as the command line:
  GET  /status   the judgments made so far
  POST /start    reset the bisection
  POST /good     mark the current version as good
  POST /bad      mark the current version as bad
  POST /skip     mark the current version as untestable
  POST /next     switch to the next version to test`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b, _, _ := loadBisector()

		port := servePort
		if port == 0 {
			var err error
			port, err = freeport.GetFreePort()
			if err != nil {
				logger.Fatalf("Failed to get a free port - %v", err)
			}
		}

		fmt.Printf("Serving bisection on http://localhost:%d\n", port)
		if _, err := server.NewServer(server.HTTP, port, b); err != nil {
			logger.Fatalf("Failed to start webserver - %v", err)
		}
	},
}

func init() {
	bisectCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 40032, "The port on which to start the server, 0 picks a free port")
}
