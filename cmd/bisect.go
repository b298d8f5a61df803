package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/spf13/cobra"
)

const bisectUsage = "usage: nodebisect bisect [help|start|bad|good|skip|next|status|clean|serve]"

var bisectHelp = strings.Join([]string{
	bisectUsage,
	"",
	"nodebisect bisect help",
	"\tprints this long help message.",
	"nodebisect bisect start",
	"\treset bisect state and start bisection, passing custom bad/good versions is not supported.",
	"nodebisect bisect bad",
	"\tmark current version as bad.",
	"nodebisect bisect good",
	"\tmark current version as good.",
	"nodebisect bisect skip",
	"\tmark current version as untestable.",
	"nodebisect bisect next",
	"\tfind next version to test and switch to it, downloading it if needed.",
	"nodebisect bisect status",
	"\tprint all judgments and the versions downloaded during the bisection.",
	"nodebisect bisect clean",
	"\tremove the versions downloaded during the bisection.",
	"nodebisect bisect serve",
	"\tserve the bisection over http.",
	"",
	"There is no log or replay command - edit the state file (.nvs_bisect.json by default) to achieve the same result.",
}, "\n")

var bisectCmd = &cobra.Command{
	Use:   "bisect",
	Short: "Bisect the versions of a remote to find the one introducing a regression",
	Long: `Bisect the versions of a remote to find the one introducing a regression.

Start a bisection with "bisect start", then switch to a version exhibiting the regression and run "bisect bad",
and switch to a version without the regression and run "bisect good".
From then on, every judgment switches to the next version to be tested, until the first bad version is found.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println(bisectUsage)
			return
		}
		fmt.Println(bisectHelp)
	},
}

var bisectStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Reset the bisect state and start a new bisection",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b, _, _ := loadBisector()
		if err := b.Start(); err != nil {
			logger.Fatalf("Failed to start bisection - %v", err)
		}
	},
}

var bisectNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Find the next version to test and switch to it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b, _, _ := loadBisector()
		report(b.Next(cmd.Context()))
	},
}

var bisectStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print all judgments and the versions downloaded during the bisection",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b, _, _ := loadBisector()
		state, err := b.State()
		if err != nil {
			logger.Fatalf("Failed to read bisection - %v", err)
		}
		statuses, err := b.Status()
		if err != nil {
			logger.Fatalf("Failed to read bisection - %v", err)
		}

		fmt.Printf("Bisection %s on remote %q\n", state.ID, state.RemoteName)
		keys := make([]string, 0, len(statuses))
		for key := range statuses {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Printf("\t%-5s %s\n", statuses[key], key)
		}
		if len(state.Installed) > 0 {
			fmt.Println("Downloaded during the bisection:")
			for _, v := range state.Installed {
				fmt.Printf("\t%s\n", v)
			}
		}
	},
}

// newMarkCmd returns the command marking the active version with the passed status
func newMarkCmd(status bisect.Status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(status),
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b, _, _ := loadBisector()
			report(b.Mark(cmd.Context(), status))
		},
	}
}

// report prints the result of a selection. Errors the user can resolve are printed as well, all others are fatal.
func report(res *bisect.Result, err error) {
	if bisect.IsUserError(err) {
		fmt.Println(err)
		return
	} else if err != nil {
		logger.Fatalf("Bisection failed - %v", err)
	}
	if res != nil {
		fmt.Println(res)
	}
}

func init() {
	rootCmd.AddCommand(bisectCmd)

	bisectCmd.AddCommand(
		bisectStartCmd,
		newMarkCmd(bisect.Good, "Mark the current version as good"),
		newMarkCmd(bisect.Bad, "Mark the current version as bad"),
		newMarkCmd(bisect.Skip, "Mark the current version as untestable"),
		bisectNextCmd,
		bisectStatusCmd,
	)
}
