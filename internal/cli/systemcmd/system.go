package systemcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
)

// New returns the `arcade system` command group.
func New() *cobra.Command {
	cmd := &cobra.Command{Use: "system", Short: "Maintenance and application settings"}
	cmd.AddCommand(cleanupCmd(), settingsCmd(), containerRootCmd(), compatCmd())
	return cmd
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete profile directories no game references",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			res, err := a.Cleaner.CleanupUnusedContainers(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
}

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show application settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			s, err := a.Settings.AppSettings(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), s)
		},
	}
}

func containerRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-container-root <path>",
		Short: "Move where game profiles are created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.Settings.SetContainerRoot(cmd.Context(), args[0]); err != nil {
				return err
			}
			root, err := a.Settings.ContainerRoot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}

func compatCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "compat", Short: "Bottles compatibility layer"}
	status := &cobra.Command{
		Use:   "status",
		Short: "Detect Bottles and list its profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			st, err := a.Compat.Status(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), st)
		},
	}
	toggle := func(use string, on bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: use + " launching Windows executables through Bottles",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, cleanup, err := common.Boot(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				return a.Compat.SetEnabled(cmd.Context(), on)
			},
		}
	}
	profile := &cobra.Command{
		Use:   "default-profile <name>",
		Short: "Set the bottle used when a game names none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Compat.SetDefaultProfile(cmd.Context(), args[0])
		},
	}
	cmd.AddCommand(status, toggle("enable", true), toggle("disable", false), profile)
	return cmd
}
