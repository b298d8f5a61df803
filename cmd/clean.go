package cmd

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cleanAgree bool

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"prune", "cleanup"},
	Short:   "Remove the versions downloaded during the bisection",
	Long: `This command removes all versions which were downloaded to be tested during the bisection.
The version currently in use is kept.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b, installer, cfg := loadBisector()

		state, err := b.State()
		if err != nil {
			logger.Fatalf("Couldn't read bisection - %v", err)
		}
		active, err := installer.Probe.ActiveVersion()
		if err != nil {
			logger.Fatalf("Couldn't get active version - %v", err)
		}

		versions := []bisect.VersionRef{}
		for _, v := range state.Installed {
			if active != nil && active.Key() == v.Key() {
				logger.Infof("Keeping %s since it is in use", v)
				continue
			}
			versions = append(versions, v)
		}

		if len(versions) == 0 {
			fmt.Println("No versions to remove. Exiting...")
			return
		}

		fmt.Printf("About to delete %d versions:\n", len(versions))
		for _, v := range versions {
			fmt.Printf("\t%s\n", v)
		}

		prompt := promptui.Prompt{
			Label:     "Proceed",
			IsConfirm: true,
		}

		if !cleanAgree {
			_, err := prompt.Run()
			if err != nil {
				fmt.Println("Exiting...")
				os.Exit(0)
			}
		}

		var mu sync.Mutex
		removed := []bisect.VersionRef{}

		var g errgroup.Group
		g.SetLimit(cfg.CleanWorkers)
		for _, v := range versions {
			g.Go(func() error {
				if err := installer.Uninstall(v); err != nil {
					return errors.Join(fmt.Errorf("failed to remove %s", v), err)
				}
				mu.Lock()
				removed = append(removed, v)
				mu.Unlock()
				return nil
			})
		}
		removeErr := g.Wait()

		// Forget whatever was removed, even if other removals failed
		if err := b.ForgetInstalled(removed); err != nil {
			logger.Fatalf("Couldn't update bisection - %v", err)
		}
		if removeErr != nil {
			logger.Fatalf("Failed to remove versions - %v", removeErr)
		}

		fmt.Println("Done cleaning up.")
	},
}

func init() {
	bisectCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVarP(&cleanAgree, "assume-yes", "y", false, `Bypass "Are you sure?" message.`)
}
