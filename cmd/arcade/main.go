package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
	configcmd "github.com/cuihairu/arcade/internal/cli/configcmd"
	enginecmd "github.com/cuihairu/arcade/internal/cli/enginecmd"
	gamecmd "github.com/cuihairu/arcade/internal/cli/gamecmd"
	servecmd "github.com/cuihairu/arcade/internal/cli/servecmd"
	systemcmd "github.com/cuihairu/arcade/internal/cli/systemcmd"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "arcade",
		Short:         "Launcher and library manager for legacy PC games",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.AddPersistentFlags(root)

	root.AddCommand(servecmd.New())
	root.AddCommand(gamecmd.New())
	root.AddCommand(enginecmd.New())
	root.AddCommand(enginecmd.NewRuntime())
	root.AddCommand(systemcmd.New())
	root.AddCommand(configcmd.New())

	comp := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(os.Stdout)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return fmt.Errorf("unknown shell: %s", args[0])
		},
	}
	root.AddCommand(comp)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, common.ErrorLine(err))
		os.Exit(1)
	}
}
