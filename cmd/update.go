package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/updater"
)

const releaseRepository = "smazurov/screenrec"

func newUpdateCmd() *cobra.Command {
	var checkOnly, rollback, prerelease bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update screenrec to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})

			up, err := updater.New(updater.Options{
				Repository: releaseRepository,
				Prerelease: prerelease,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if rollback {
				if err := up.Rollback(ctx); err != nil {
					return err
				}
				fmt.Printf("Rolled back to %s\n", up.BackupVersion())
				return nil
			}

			info, err := up.Check(ctx)
			if err != nil {
				return err
			}
			if !info.UpdateAvailable {
				fmt.Printf("screenrec %s is up to date\n", info.CurrentVersion)
				return nil
			}

			fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			fmt.Printf("  %s\n", info.ReleaseURL)
			if checkOnly {
				return nil
			}

			if err := up.Apply(ctx); err != nil {
				return err
			}
			fmt.Printf("Updated to %s\n", info.LatestVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for an update, do not download")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the previously installed binary")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")

	return cmd
}
