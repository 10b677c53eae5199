package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NeverVane/histpick/internal/config"
	"github.com/NeverVane/histpick/internal/launcher"
	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/internal/output"
	"github.com/NeverVane/histpick/internal/selector"
	"github.com/NeverVane/histpick/internal/shell"
	"github.com/NeverVane/histpick/pkg/history"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

// run executes the root command and returns the process exit code
func run() int {
	cfg := config.DefaultConfig()
	exitCode := 0

	loggerConfig := &logger.Config{
		Level:     "error",
		Output:    "stderr",
		Color:     true,
		Timestamp: true,
		Caller:    false,
	}
	if err := logger.Init(loggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "histpick",
		Short: "Pick a command from your shell history",
		Long: `histpick reads the tail of your shell history, shows it in rofi (or a
terminal picker) and types, copies, runs or edits the command you choose.

Key bindings in the selector:
  Enter    use the command (type it into the focused window by default)
  Alt+e    edit the command first
  Alt+r    run the command in a terminal
  Alt+c    copy the command to the clipboard
  Alt+h    show the key bindings

The exit status mirrors the selector: 0 for a selection, 10-13 for the
custom bindings above, 1 when cancelled or on error.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			*cfg = *loaded

			loggerConfig.Level = cfg.Log.Level
			loggerConfig.Output = cfg.Log.Output
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				loggerConfig.Level = "debug"
			}
			return logger.Init(loggerConfig)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := launcherOptions(cmd, cfg)
			if err != nil {
				return err
			}
			if action, _ := cmd.Flags().GetString("action"); action != "" {
				if err := validateAction(action); err != nil {
					return err
				}
				opts.Action = action
			}
			opts.EditMode, _ = cmd.Flags().GetBool("edit")
			opts.UseTUI, _ = cmd.Flags().GetBool("tui")
			opts.NoColor, _ = cmd.Flags().GetBool("no-color")

			code, err := launcher.New(cfg, opts).Run(ctx)
			if err != nil {
				logger.WithError(err).Debug().Int("exit_code", code).Msg("Launcher finished with error")
			}
			exitCode = code
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.config/histpick/config.toml)")
	rootCmd.PersistentFlags().StringP("file", "f", "", "History file (default: detected from $SHELL)")
	rootCmd.PersistentFlags().String("shell", "", "Shell used to detect the history file")
	rootCmd.PersistentFlags().Int("limit", 0, "Maximum number of entries (default from config)")
	rootCmd.PersistentFlags().Bool("latest", false, "Keep the most recent occurrence of repeated commands")
	rootCmd.PersistentFlags().BoolP("timestamps", "t", false, "Show timestamps")
	rootCmd.PersistentFlags().BoolP("line-numbers", "n", false, "Show history line numbers")

	rootCmd.Flags().BoolP("edit", "e", false, "Edit the selected command before using it")
	rootCmd.Flags().Bool("tui", false, "Use the terminal picker instead of rofi")
	rootCmd.Flags().String("action", "", "Action for a plain selection (type, copy, run, edit, print)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(listCmd(cfg))
	rootCmd.AddCommand(themeCmd(cfg))
	rootCmd.AddCommand(widgetCmd(cfg))
	rootCmd.AddCommand(versionCmd(cfg))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		formatter := output.NewFormatter(cfg)
		formatter.SetFlags(false, false, noColor)
		formatter.Error("%v", err)
		return 1
	}
	return exitCode
}

// launcherOptions collects the flags shared by the root command and list
func launcherOptions(cmd *cobra.Command, cfg *config.Config) (launcher.Options, error) {
	var opts launcher.Options
	opts.HistoryFile, _ = cmd.Flags().GetString("file")
	opts.Shell, _ = cmd.Flags().GetString("shell")
	opts.ShowTimestamps, _ = cmd.Flags().GetBool("timestamps")
	opts.ShowLineNumbers, _ = cmd.Flags().GetBool("line-numbers")

	if opts.HistoryFile != "" {
		home, _ := os.UserHomeDir()
		opts.HistoryFile = history.ExpandHome(opts.HistoryFile, home)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return opts, fmt.Errorf("--limit must be positive, got %d", limit)
	}
	if limit > 0 {
		cfg.History.MaxEntries = limit
	}
	if latest, _ := cmd.Flags().GetBool("latest"); latest {
		cfg.History.Dedup = string(history.KeepLatest)
	}
	return opts, nil
}

func validateAction(action string) error {
	switch action {
	case launcher.ActionType, launcher.ActionCopy, launcher.ActionRun, launcher.ActionEdit, launcher.ActionPrint:
		return nil
	default:
		return fmt.Errorf("invalid action %q (must be one of: type, copy, run, edit, print)", action)
	}
}

// listCmd prints the loaded entries without opening a selector
func listCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the loaded history entries",
		Long: `Print the entries histpick would show, most recent first, after the
tail window and deduplication are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			query, _ := cmd.Flags().GetString("query")
			relative, _ := cmd.Flags().GetBool("relative")
			verbose, _ := cmd.Flags().GetBool("verbose")
			noColor, _ := cmd.Flags().GetBool("no-color")

			formatter := output.NewFormatter(cfg)
			formatter.SetFlags(verbose, false, noColor)

			exportFormat, err := history.ValidateExportFormat(format)
			if err != nil {
				return err
			}

			opts, err := launcherOptions(cmd, cfg)
			if err != nil {
				return err
			}

			entries, err := launcher.LoadEntries(cfg, opts)
			if err != nil {
				return err
			}
			entries = launcher.RankEntries(entries, query)
			if len(entries) == 0 && query != "" {
				formatter.Warning("No entries match %q", query)
			}
			formatter.Info("%d entries", len(entries))

			if exportFormat != history.ExportPlain {
				_, err := history.Export(formatter.Out(), entries, exportFormat)
				return err
			}

			rows := selector.FormatRows(entries, selector.RowOptions{
				ShowLineNumbers: opts.ShowLineNumbers,
				ShowTimestamps:  opts.ShowTimestamps || relative,
				TimestampFormat: cfg.Selector.TimestampFormat,
				Relative:        relative,
			})
			for _, row := range rows {
				formatter.Println("%s", row)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "plain", "Output format (plain, json, yaml, zsh, bash, csv)")
	cmd.Flags().StringP("query", "q", "", "Only print entries fuzzy-matching the query")
	cmd.Flags().Bool("relative", false, "Show timestamps relative to now")

	return cmd
}

// themeCmd prints the generated rofi theme
func themeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "theme",
		Short: "Print the rofi theme generated from the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			rendered, err := selector.ThemeFromConfig(cfg.Theme).Render()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}

// widgetCmd manages the Ctrl+R shell widget
func widgetCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Bind Ctrl+R in your shell to histpick",
		Long: `Generate, install or remove a shell widget that opens the terminal picker
on Ctrl+R and places the chosen command on the command line.

The shell defaults to the name of $SHELL. Supported shells: bash, zsh, fish.`,
	}

	shellArg := func(args []string) string {
		if len(args) > 0 {
			return args[0]
		}
		return shell.ShellName(os.Getenv("SHELL"))
	}

	printCmd := &cobra.Command{
		Use:   "print [shell]",
		Short: "Print the widget script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wm, err := shell.NewWidgetManager(cfg)
			if err != nil {
				return err
			}
			script, err := wm.GenerateWidget(shellArg(args))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), script)
			return err
		},
	}

	installCmd := &cobra.Command{
		Use:   "install [shell]",
		Short: "Install the widget into your shell configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			noColor, _ := cmd.Flags().GetBool("no-color")
			formatter := output.NewFormatter(cfg)
			formatter.SetFlags(false, false, noColor)

			wm, err := shell.NewWidgetManager(cfg)
			if err != nil {
				return err
			}
			name := shellArg(args)
			path, err := wm.Install(name, force)
			if err != nil {
				return err
			}
			formatter.Success("Installed %s widget in %s", name, path)
			formatter.Info("Restart your shell to use Ctrl+R")
			return nil
		},
	}
	installCmd.Flags().Bool("force", false, "Reinstall even if the widget is present")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall [shell]",
		Short: "Remove the widget from your shell configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noColor, _ := cmd.Flags().GetBool("no-color")
			formatter := output.NewFormatter(cfg)
			formatter.SetFlags(false, false, noColor)

			wm, err := shell.NewWidgetManager(cfg)
			if err != nil {
				return err
			}
			name := shellArg(args)
			if err := wm.Uninstall(name); err != nil {
				return err
			}
			formatter.Success("Removed %s widget", name)
			return nil
		},
	}

	cmd.AddCommand(printCmd, installCmd, uninstallCmd)
	return cmd
}

// versionCmd displays version information
func versionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			noColor, _ := cmd.Flags().GetBool("no-color")
			formatter := output.NewFormatter(cfg)
			formatter.SetFlags(false, false, noColor)

			formatter.Println("%s %s", formatter.Bold("histpick"), version)
			formatter.Println("Commit:      %s", commit)
			formatter.Println("Build Date:  %s", date)
			formatter.Println("OS/Arch:     %s/%s", runtime.GOOS, runtime.GOARCH)
			formatter.Println("Go Version:  %s", runtime.Version())
			return nil
		},
	}
}
