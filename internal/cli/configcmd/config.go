package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
)

// New returns the `arcade config` command group.
func New() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	var strict bool
	test := &cobra.Command{
		Use:   "test",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := common.Load(cmd)
			if err != nil {
				return err
			}
			if err := common.ValidateConfig(cfg, strict); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
	test.Flags().BoolVar(&strict, "strict", false, "also require watch roots to exist")
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := common.Load(cmd)
			if err != nil {
				return err
			}
			if cfg.Runtime.Mirror.SecretKey != "" {
				cfg.Runtime.Mirror.SecretKey = "***"
			}
			return common.PrintJSON(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.AddCommand(test, show)
	return cmd
}
