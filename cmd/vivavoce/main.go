package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mentorlab/vivavoce/internal/api"
	"github.com/mentorlab/vivavoce/internal/auth"
	appI18n "github.com/mentorlab/vivavoce/internal/i18n"
	"github.com/mentorlab/vivavoce/internal/model"
	"github.com/mentorlab/vivavoce/internal/narrate"
	"github.com/mentorlab/vivavoce/internal/session"
	"github.com/mentorlab/vivavoce/internal/store"
	"github.com/mentorlab/vivavoce/internal/tui"
	"github.com/mentorlab/vivavoce/internal/voice"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vivavoce",
		Short: "Terminal client for AI-examined viva sessions",
	}

	start := startCmd()
	root.AddCommand(start, loginCmd(), logoutCmd(), exportCmd())

	// Make "start" the default when no subcommand is given.
	root.RunE = start.RunE
	root.Args = start.Args

	// Register start flags on root so bare `vivavoce 42` still works.
	root.Flags().AddFlagSet(start.Flags())

	return root
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start PROJECT_ID",
		Short: "Start a viva session for a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runStart,
	}
	f := cmd.Flags()
	f.String("api-url", "http://127.0.0.1:8000", "Platform API base URL")
	f.String("voice-url", "http://127.0.0.1:8001", "Voice synthesis service base URL")
	f.String("voice", voice.DefaultVoice, "Examiner voice name")
	f.String("token-file", defaultConfigPath("token"), "Path to the stored access token")
	f.String("db", "vivavoce.db", "SQLite transcript database path")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.Bool("no-voice", false, "Disable examiner narration")
	f.String("player", "", "Audio player command (default: probe the system)")
	f.Duration("debounce", 400*time.Millisecond, "Delay before auto-narrating a question")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the platform access token",
		RunE:  runLogin,
	}
	f := cmd.Flags()
	f.String("token", "", "Access token (omit to read from stdin)")
	f.String("token-file", defaultConfigPath("token"), "Path to store the access token")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		RunE:  runLogout,
	}
	f := cmd.Flags()
	f.String("token-file", defaultConfigPath("token"), "Path to the stored access token")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded viva transcripts as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "vivavoce.db", "SQLite transcript database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("VIVAVOCE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("vivavoce")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/vivavoce")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// defaultConfigPath resolves a file name under the user's config directory,
// falling back to the working directory when none is available.
func defaultConfigPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "vivavoce", name)
}

func runStart(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	projectID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid project id %q: must be an integer", args[0])
	}

	token, err := auth.NewStore(v.GetString("token-file")).Load()
	switch {
	case errors.Is(err, auth.ErrNoToken):
		return errors.New("not logged in: run `vivavoce login` first")
	case errors.Is(err, auth.ErrTokenExpired):
		return errors.New("your session has expired: run `vivavoce login` again")
	case err != nil:
		return err
	}

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	apiURL := v.GetString("api-url")
	if err := db.SetProfile(model.Profile{Student: auth.Subject(token), APIBase: apiURL}); err != nil {
		slog.Warn("record profile", "error", err)
	}

	ctrl := session.New(api.New(apiURL, token), db)

	var player narrate.Player = narrate.NopPlayer{}
	if !v.GetBool("no-voice") {
		p, err := narrate.NewExecPlayer(v.GetString("player"))
		if err != nil {
			slog.Warn("narration disabled", "error", err)
		} else {
			player = p
		}
	}
	synth := voice.New(v.GetString("voice-url"), v.GetString("voice"))

	// The notify hook runs on narrator goroutines after the program has
	// started a narration, so the program pointer is set by then.
	var program *tea.Program
	narrator := narrate.New(synth, player, v.GetDuration("debounce"), func(err error) {
		slog.Warn("narration failed", "error", err)
		if program != nil {
			program.Send(tui.NarrationFailedMsg{Err: err})
		}
	})
	defer narrator.Close()

	program = tea.NewProgram(tui.New(ctrl, narrator, projectID), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	if m, ok := final.(tui.Model); ok {
		if msg := m.FatalError(); msg != "" {
			return errors.New(msg)
		}
	}
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	token := strings.TrimSpace(v.GetString("token"))
	if token == "" {
		fmt.Fprint(os.Stderr, "Paste your access token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	tokens := auth.NewStore(v.GetString("token-file"))
	if err := tokens.Save(token); err != nil {
		return err
	}
	if _, err := tokens.Load(); errors.Is(err, auth.ErrTokenExpired) {
		slog.Warn("the saved token is already expired")
	}

	slog.Info("token saved", "path", v.GetString("token-file"))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := auth.NewStore(v.GetString("token-file")).Clear(); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	slog.Info("token removed", "path", v.GetString("token-file"))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllSessions()
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}
	profile, err := db.GetProfile()
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	export := model.VivaExport{
		Student:    profile.Student,
		APIBase:    profile.APIBase,
		ExportedAt: time.Now().UTC(),
		Sessions:   results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
