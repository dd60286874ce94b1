package enginecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
	"github.com/cuihairu/arcade/internal/service/engines"
)

// New returns the `arcade engine` command group.
func New() *cobra.Command {
	cmd := &cobra.Command{Use: "engine", Short: "Manage installed engines and runtimes"}
	cmd.AddCommand(listCmd(), findCmd(), addCmd(), deleteCmd(), updateInfoCmd(), updateCmd())
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			list, err := a.Engines.List(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), list)
		},
	}
}

func findCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "find <engine-type>",
		Short: "Find an engine by type (newest unless --version)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			e, err := a.Engines.Find(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "exact version")
	return cmd
}

func addCmd() *cobra.Command {
	var in engines.AddInput
	cmd := &cobra.Command{
		Use:   "add <engine-type> <version> <install-path>",
		Short: "Register a manually installed engine",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			in.EngineType, in.Version, in.InstallPath = args[0], args[1], args[2]
			e, err := a.Engines.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an engine (managed runtimes are deleted from disk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.Engines.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func updateInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-info <id>",
		Short: "Compare an installed runtime with the stable release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			info, err := a.Runtimes.UpdateInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), info)
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a runtime with the stable release when newer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			res, err := a.Runtimes.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
}
