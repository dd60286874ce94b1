package gamecmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	common "github.com/cuihairu/arcade/internal/cli/common"
	"github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/service/games"
)

// New returns the `arcade game` command group.
func New() *cobra.Command {
	cmd := &cobra.Command{Use: "game", Short: "Manage the game library"}
	cmd.AddCommand(listCmd(), getCmd(), addCmd(), updateCmd(), deleteCmd(),
		launchCmd(), scanCmd(), settingsCmd(), profileDirCmd())
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered games",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			list, err := a.Games.List(cmd.Context())
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), list)
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			g, err := a.Games.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), g)
		},
	}
}

func addCmd() *cobra.Command {
	var in games.ImportInput
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Import one game directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			in.Path = args[0]
			g, err := a.Games.Import(cmd.Context(), in)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&in.EngineType, "engine", "", "engine type (skip classification)")
	cmd.Flags().StringVar(&in.Title, "title", "", "display title")
	return cmd
}

func updateCmd() *cobra.Command {
	var title, path, engine, rtVersion, cover string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a game's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u ports.GameUpdate
			fs := cmd.Flags()
			if fs.Changed("title") {
				u.Title = &title
			}
			if fs.Changed("path") {
				u.Path = &path
			}
			if fs.Changed("engine") {
				t := ports.ParseEngineType(engine)
				u.EngineType = &t
			}
			if fs.Changed("runtime") {
				u.RuntimeVersion = &rtVersion
			}
			if fs.Changed("cover") {
				u.CoverImagePath = &cover
			}
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			g, err := a.Games.Update(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().StringVar(&path, "path", "", "game directory")
	cmd.Flags().StringVar(&engine, "engine", "", "engine type")
	cmd.Flags().StringVar(&rtVersion, "runtime", "", "pinned runtime version")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image path")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a game and its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.Games.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func launchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "launch <id>",
		Short: "Launch a game inside its sandboxed profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if dryRun {
				p, err := a.Launcher.Plan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return common.PrintJSON(cmd.OutOrStdout(), p)
			}
			res, err := a.Launcher.Launch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the launch plan without spawning")
	return cmd
}

func scanCmd() *cobra.Command {
	var depth int
	var quiet bool
	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Recursively import every game under root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			in := games.ScanInput{Root: args[0], MaxDepth: depth, TaskID: uuid.NewString()}
			if !quiet {
				stop := common.Follow(a.Bus, in.TaskID, cmd.ErrOrStderr())
				defer stop()
			}
			res, err := a.Games.Scan(cmd.Context(), in)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", -1, "maximum directory depth (negative: configured default)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}

func settingsCmd() *cobra.Command {
	var sets []string
	var file string
	cmd := &cobra.Command{
		Use:   "settings <id>",
		Short: "Show or edit a game's launch settings",
		Long: "Without flags prints the launch settings. --file replaces them from a YAML document;\n" +
			"--set key=value edits single fields (entry_path, runtime_version, args, sandbox_home,\n" +
			"use_compat_layer, compat_profile_name, env.NAME).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()
			cfg, err := a.Games.Settings(ctx, args[0])
			if err != nil {
				return err
			}
			if file == "" && len(sets) == 0 {
				return common.PrintJSON(cmd.OutOrStdout(), cfg)
			}
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				g, err := a.Games.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if cfg, err = decodeLaunchConfig(b, ports.DefaultLaunchConfig(g)); err != nil {
					return err
				}
			}
			for _, kv := range sets {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--set %q: want key=value", kv)
				}
				if err := applySetting(cfg, k, v); err != nil {
					return err
				}
			}
			saved, err := a.Games.SaveSettings(ctx, args[0], cfg)
			if err != nil {
				return err
			}
			return common.PrintJSON(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "key=value override (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "replace settings from a launch.yaml document")
	return cmd
}

func profileDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile-dir <id>",
		Short: "Print a game's profile directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := common.Boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			dir, err := a.Games.ProfileDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
