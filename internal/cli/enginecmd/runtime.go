package enginecmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
	"github.com/cuihairu/arcade/internal/runtimes"
)

// NewRuntime returns the `arcade runtime` command group.
func NewRuntime() *cobra.Command {
	cmd := &cobra.Command{Use: "runtime", Short: "NW.js runtime acquisition"}
	cmd.AddCommand(stableCmd(), downloadCmd())
	return cmd
}

func stableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stable",
		Short: "Show the stable NW.js release for this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			info, err := a.Runtimes.StableInfo(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), info)
		},
	}
}

func downloadCmd() *cobra.Command {
	var flavor string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and install the stable NW.js runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := runtimes.ParseFlavor(flavor)
			if err != nil {
				return err
			}
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			taskID := uuid.NewString()
			if !quiet {
				stop := common.Follow(a.Bus, taskID, cmd.ErrOrStderr())
				defer stop()
			}
			res, err := a.Runtimes.DownloadStable(cmd.Context(), f, taskID, true)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&flavor, "flavor", "normal", "normal|sdk")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
