// Package main provides the terminal client for kana.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/kana/apps/go-server/internal/config"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/play"
	"github.com/robalobadob/kana/apps/go-server/internal/submit"
	"github.com/robalobadob/kana/apps/go-server/internal/tui"
)

const requestTimeout = 15 * time.Second

var (
	verbose bool

	playRounds   int
	playKatakana bool
	playRomaji   bool

	authUsername string
	authPassword string

	historyLimit int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kana",
		Short:         "Hiragana flashcards in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging()
		},
		RunE: runPlayCmd,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.Flags().IntVar(&playRounds, "rounds", game.DefaultRoundLimit, "rounds per game")
	rootCmd.Flags().BoolVar(&playKatakana, "katakana", true, "show katakana hints")
	rootCmd.Flags().BoolVar(&playRomaji, "romaji", true, "show romaji hints")

	rootCmd.AddCommand(newAuthCmd("login", "Sign in and sync a staged game"))
	rootCmd.AddCommand(newAuthCmd("signup", "Create an account and sync a staged game"))
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func setupLogging() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// client bundles what every command needs.
type client struct {
	cfg     config.Client
	api     *submit.Client
	pending pending.Store
	close   func()
}

func openClient() (*client, error) {
	cfg, err := config.LoadClient(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c := &client{cfg: cfg, api: submit.NewClient(cfg.ServerURL, nil), close: func() {}}
	switch cfg.PendingBackend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := pending.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.pending = pending.NewRedisStore(rdb, "cli", 0)
		c.close = func() { _ = rdb.Close() }
	default:
		c.pending = pending.NewFileStore(cfg.PendingPath)
	}
	return c, nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.close()

	applyIntConfig(cmd, "rounds", &playRounds, c.cfg.RoundLimit)
	applyBoolConfig(cmd, "katakana", &playKatakana, c.cfg.KatakanaHint)
	applyBoolConfig(cmd, "romaji", &playRomaji, c.cfg.RomajiHint)

	cat, err := kana.Default()
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}
	sess, err := game.NewSession(game.NewGenerator(cat, nil), playRounds)
	if err != nil {
		return err
	}
	ctrl := play.NewController(sess, play.Finisher{Pending: c.pending, Submitter: c.api})

	id, err := loadIdentity()
	if err != nil {
		return err
	}
	if id.Present() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		sum, err := ctrl.Login(ctx, id)
		cancel()
		switch {
		case err != nil:
			logErrf("could not sync staged game: %v\n", err)
		case sum != nil:
			logErrf("synced staged game %s (%d%%)\n", sum.GameID, sum.Accuracy)
		}
	}

	// the alt screen owns the terminal from here on
	if !verbose {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	model := tui.NewModel(ctrl, tui.Options{KatakanaHint: playKatakana, RomajiHint: playRomaji, Timeout: requestTimeout})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	// a hand-off may still be running if the player quit mid-save
	for ctrl.Submitting() && ctx.Err() == nil {
		time.Sleep(50 * time.Millisecond)
	}
	staged, err := ctrl.StageUnsent(ctx)
	if err != nil {
		return fmt.Errorf("last game was not saved: %w", err)
	}
	if staged {
		logErrln("last game was not saved; it is staged, run: kana sync")
	}
	return nil
}

func newAuthCmd(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthCmd(cmd, use == "signup")
		},
	}
	cmd.Flags().StringVarP(&authUsername, "username", "u", "", "username")
	cmd.Flags().StringVarP(&authPassword, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func runAuthCmd(cmd *cobra.Command, signup bool) error {
	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.close()

	in := bufio.NewReader(cmd.InOrStdin())
	if authUsername == "" {
		if authUsername, err = prompt(in, "username: "); err != nil {
			return err
		}
	}
	if authPassword == "" {
		if authPassword, err = prompt(in, "password: "); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	var id submit.Identity
	if signup {
		id, err = c.api.Signup(ctx, authUsername, authPassword)
	} else {
		id, err = c.api.Login(ctx, authUsername, authPassword)
	}
	if err != nil {
		return err
	}
	if err := saveIdentity(id); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "signed in as %s\n", id.Username)
	return reconcile(ctx, out, c, id)
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Submit the staged game, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openClient()
			if err != nil {
				return err
			}
			defer c.close()
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			if !id.Present() {
				return errors.New("not signed in; run: kana login")
			}
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return reconcile(ctx, cmd.OutOrStdout(), c, id)
		},
	}
}

func reconcile(ctx context.Context, out io.Writer, c *client, id submit.Identity) error {
	sum, err := submit.NewReconciler(c.pending, c.api).ReconcilePending(ctx, id)
	if err != nil {
		return fmt.Errorf("staged game kept for later: %w", err)
	}
	if sum == nil {
		fmt.Fprintln(out, "nothing to sync")
		return nil
	}
	fmt.Fprintf(out, "synced game %s: %d/%d correct (%d%%)\n", sum.GameID, sum.Correct, sum.Rounds, sum.Accuracy)
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.Remove(config.DefaultTokenPath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove identity: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your stored games and accuracy",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "last", 10, "number of games to list")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.close()
	id, err := loadIdentity()
	if err != nil {
		return err
	}
	if !id.Present() {
		return errors.New("not signed in; run: kana login")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	d, err := c.api.Dashboard(ctx, id)
	if err != nil {
		return err
	}
	games, err := c.api.ListGames(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d games, %d/%d rounds correct, average %d%% (%s)\n",
		d.Games, d.CorrectRounds, d.TotalRounds, d.AverageAccuracy, d.Tier)
	if len(d.Missed) > 0 {
		missed := make([]string, 0, len(d.Missed))
		for _, m := range d.Missed {
			missed = append(missed, fmt.Sprintf("%s(%s)x%d", m.Hiragana, m.Romaji, m.Count))
		}
		fmt.Fprintf(out, "most missed: %s\n", strings.Join(missed, " "))
	}
	for i, g := range games {
		if i == historyLimit {
			break
		}
		fmt.Fprintf(out, "%s  %3d%%  %2d/%-2d  %s\n", g.CreatedAt.Local().Format("2006-01-02 15:04"),
			g.Accuracy, g.Correct(), len(g.Rounds), history.TierOf(g.Accuracy))
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

const defaultConfigTemplate = `# kana configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# url = "http://localhost:5175"

[game]
# round-limit = 10
# katakana-hint = true
# romaji-hint = true

[pending]
# backend = "file"        # "file" or "redis"
# path = "~/.local/share/kana/pending.json"
# redis-url = "redis://localhost:6379/0"
`

// loadIdentity returns the saved identity, or a zero one when signed out.
func loadIdentity() (submit.Identity, error) {
	var id submit.Identity
	raw, err := os.ReadFile(config.DefaultTokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return id, nil
		}
		return id, fmt.Errorf("failed to read identity: %w", err)
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable identity file")
		return submit.Identity{}, nil
	}
	return id, nil
}

func saveIdentity(id submit.Identity) error {
	path := config.DefaultTokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	logErrf("%s", label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s %w", strings.TrimSpace(label), err)
	}
	return strings.TrimSpace(line), nil
}

func applyIntConfig(cmd *cobra.Command, name string, target *int, value int) {
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyBoolConfig(cmd *cobra.Command, name string, target *bool, value bool) {
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}

func logErrln(args ...any) {
	_, _ = fmt.Fprintln(os.Stderr, args...)
}
