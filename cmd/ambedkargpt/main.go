package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ambedkargpt/internal/config"
	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/httpapi"
	"ambedkargpt/internal/logging"
	"ambedkargpt/internal/tui"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "ambedkargpt",
		Short:        "Ask questions about Dr. B.R. Ambedkar's speech",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/ambedkargpt/config.yaml)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and print its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), configPath, strings.Join(args, " "), cmd)
		},
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, addr)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.AddCommand(chatCmd, askCmd, serveCmd)
	return rootCmd
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func runChat(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// the TUI owns the terminal, so logs go to stderr at warn and above
	cfg.Log.Level = "warn"
	a, err := newApp(cfg, logging.New(cfg.Log, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Loading the speech and building the index...")
	res, err := a.pipeline.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	_, err = tea.NewProgram(tui.New(ctx, a.pipeline, res.Summary), tea.WithAltScreen()).Run()
	return err
}

func runAsk(ctx context.Context, configPath, question string, cmd *cobra.Command) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(cfg, logging.New(cfg.Log, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.pipeline.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	ans, err := a.pipeline.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, domain.ErrRetrievalEmpty) {
			fmt.Fprintln(cmd.OutOrStdout(), "No relevant passage found.")
			return nil
		}
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Answer: %s\n\n", strings.TrimSpace(ans.Text))
	fmt.Fprintf(out, "Retrieved %d chunks:\n", ans.SourcesCount)
	for _, s := range ans.Sources {
		fmt.Fprintf(out, "  [%d] score=%.3f  %q\n", s.Rank, s.Score, s.Text)
	}
	return nil
}

func runServe(ctx context.Context, configPath, addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	log := logging.New(cfg.Log, os.Stderr)
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return httpapi.New(a.pipeline, cfg.Server, log).ListenAndServe(ctx)
}
