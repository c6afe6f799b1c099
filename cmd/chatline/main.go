// Package main provides the chatline CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/chatline/cli"
	"github.com/richinex/chatline/config"
)

var (
	// Global flags
	configPath   string
	baseURL      string
	storeBackend string
	dbPath       string
	verbose      bool
	tts          bool
	play         bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		// A second interrupt terminates immediately.
		<-ctx.Done()
		stop()
	}()

	rootCmd := &cobra.Command{
		Use:   "chatline",
		Short: "Terminal client for a chat backend with local session history",
		Long: `A terminal client for a chat backend.

Sessions and their messages are kept locally (SQLite by default) and survive
restarts. Messages are sent to the backend one at a time or as a batch, and
replies are appended to the current session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML settings file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Chat backend base URL (overrides CHATLINE_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "Session store: sqlite, file or memory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Store location (database file or directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	rootCmd.PersistentFlags().BoolVar(&tts, "tts", false, "Request spoken replies")
	rootCmd.PersistentFlags().BoolVar(&play, "play", false, "Open audio replies with the default player")

	rootCmd.AddCommand(chatCmd(ctx))
	rootCmd.AddCommand(sendCmd(ctx))
	rootCmd.AddCommand(batchCmd(ctx))
	rootCmd.AddCommand(sessionsCmd(ctx))
	rootCmd.AddCommand(historyCmd(ctx))
	rootCmd.AddCommand(deleteCmd(ctx))
	rootCmd.AddCommand(syncCmd(ctx))
	rootCmd.AddCommand(newCmd(ctx))
	rootCmd.AddCommand(useCmd(ctx))

	err := rootCmd.Execute()
	stop()
	if err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadSettings applies command line overrides on top of file and environment settings.
func loadSettings() (config.Settings, error) {
	settings, err := config.New(configPath)
	if err != nil {
		return settings, err
	}
	if baseURL != "" {
		settings.Backend.BaseURL = baseURL
	}
	if storeBackend != "" {
		settings.Store.Backend = storeBackend
	}
	if dbPath != "" {
		settings.Store.Path = dbPath
	}
	if verbose {
		settings.Log.Level = "debug"
	}
	return settings, settings.Validate()
}

// withApp opens the app for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(context.Context, *cli.App, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		opts := cli.DefaultOptions()
		opts.TTS = tts
		opts.Play = play

		app, err := cli.Open(ctx, settings, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(ctx, app, args)
	}
}

func chatCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the current session",
		Long: `Start an interactive chat. Enter sends the message; end a line with a
backslash to continue it on the next line. Type /help inside the chat for
session commands.`,
		Args: cobra.NoArgs,
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, _ []string) error {
			return app.Chat(ctx)
		}),
	}
}

func sendCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "send [message|-]",
		Short: "Send one message in the current session",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}
			if err := app.EnsureSession(ctx); err != nil {
				return err
			}
			return app.Send(ctx, text)
		}),
	}
}

func batchCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Send every non-blank line of a file (or stdin) as one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read batch input: %w", err)
			}
			if err := app.EnsureSession(ctx); err != nil {
				return err
			}
			return app.Batch(ctx, string(data))
		}),
	}
}

func sessionsCmd(ctx context.Context) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, _ []string) error {
			return app.Sessions(ctx, remote)
		}),
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List the backend's sessions instead of local ones")

	return cmd
}

func historyCmd(ctx context.Context) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show a session's messages (the current session by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, args []string) error {
			return app.History(ctx, firstArg(args), remote)
		}),
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the backend's copy")

	return cmd
}

func deleteCmd(ctx context.Context) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session locally and on the backend (the current session by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, args []string) error {
			return app.Delete(ctx, firstArg(args), yes)
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func syncCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import sessions from the backend",
		Long: `Import sessions from the backend. Sessions missing locally are created;
local sessions are only extended when their history is a prefix of the
backend's copy. Local history is never overwritten otherwise.`,
		Args: cobra.NoArgs,
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, _ []string) error {
			return app.Sync(ctx)
		}),
	}
}

func newCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new session and make it current",
		Args:  cobra.NoArgs,
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, _ []string) error {
			return app.New(ctx)
		}),
	}
}

func useCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a session current (a unique id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(ctx, func(ctx context.Context, app *cli.App, args []string) error {
			return app.Use(ctx, args[0])
		}),
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
