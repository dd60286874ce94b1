package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuihairu/arcade/internal/app"
	"github.com/cuihairu/arcade/internal/events"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

var cfgFile string

// AddPersistentFlags registers the flags shared by every subcommand.
func AddPersistentFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	pf.String("data-dir", "", "data directory (registry db, runtimes, profiles)")
	pf.String("db-dsn", "", "database DSN, e.g. sqlite:///path/arcade.db or postgres://...")
	pf.String("container-root", "", "override the profile container root")
	pf.String("log-level", "", "debug|info|warn|error")
	pf.String("log-format", "", "console|json")
	pf.String("log-file", "", "log to a rotating file instead of stderr")
}

// Load resolves flags, env and config file into a normalized config and
// installs the process logger.
func Load(cmd *cobra.Command) (app.Config, *slog.Logger, *viper.Viper, error) {
	v := NewViper()
	if err := BindFlags(v, cmd.Flags()); err != nil {
		return app.Config{}, nil, nil, err
	}
	if err := ReadConfigFile(v, cfgFile); err != nil {
		return app.Config{}, nil, nil, fmt.Errorf("read config: %w", err)
	}
	logger := SetupLogger(LogConfigFrom(v))
	if cfgFile != "" {
		logger.Debug("config loaded", "file", cfgFile)
	}
	cfg, err := AppConfig(v)
	if err != nil {
		return app.Config{}, nil, nil, err
	}
	return cfg, logger, v, nil
}

// Boot loads config and composes the application.
func Boot(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, logger, _, err := Load(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateConfig(cfg, false); err != nil {
		return nil, nil, fmt.Errorf("config invalid: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.Initialize(ctx, cfg, logger)
}

var pretty = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	b, err := pretty.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Follow prints the events of taskID to w until the task reports a
// terminal event or stop is called.
func Follow(bus *events.Bus, taskID string, w io.Writer) (stop func()) {
	sub := bus.Subscribe(taskID, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C {
			fmt.Fprintln(w, describe(ev))
			if ev.Terminal {
				return
			}
		}
	}()
	return func() {
		sub.Close()
		<-done
	}
}

func describe(ev ports.Event) string {
	switch ev.Kind {
	case ports.EventDownloadProgress:
		if ev.Percent != nil {
			return fmt.Sprintf("[%s] download %s %s: %.1f%%", ev.TaskID, ev.Flavor, ev.Version, *ev.Percent)
		}
		return fmt.Sprintf("[%s] download %s %s: %d bytes", ev.TaskID, ev.Flavor, ev.Version, ev.Downloaded)
	case ports.EventInstallStage:
		return fmt.Sprintf("[%s] %s %s %s", ev.TaskID, ev.Stage, ev.Flavor, ev.Version)
	case ports.EventScanProgress:
		return fmt.Sprintf("[%s] scan %.0f%% %s", ev.TaskID, ev.Progress, ev.Label)
	case ports.EventTaskFailed:
		return fmt.Sprintf("[%s] failed: %s", ev.TaskID, ev.Error)
	}
	return fmt.Sprintf("[%s] %s", ev.TaskID, ev.Kind)
}

// ErrorLine renders err for the terminal, with the error code when known.
func ErrorLine(err error) string {
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		return fmt.Sprintf("error: %s: %v", code, err)
	}
	return fmt.Sprintf("error: %v", err)
}
