package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/auth"
	"github.com/mmcdole/folio/internal/config"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/hooks"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/query"
	"github.com/mmcdole/folio/internal/search"
	"github.com/mmcdole/folio/internal/store"
	"github.com/mmcdole/folio/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func main() {
	var (
		showVersion bool
		clearCache  bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&clearCache, "clear-cache", false, "remove saved list snapshots and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("folio %s\n", Version)
		return
	}

	if err := run(clearCache); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// clearSnapshots wipes the saved pages of the configured server, or the
// whole cache directory when no server is configured yet.
func clearSnapshots(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Server.URL == "" {
		return cfg.ClearCache()
	}
	snap, err := store.OpenSnapshot(cfg.Cache.Dir, cfg.Server.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	snap.Clear()
	return snap.Close()
}

func run(clearCache bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := log.Setup(cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting folio", "version", Version)

	if clearCache {
		if err := clearSnapshots(cfg, logger); err != nil {
			return err
		}
		fmt.Println("✓ Cache cleared")
		return nil
	}

	if !cfg.IsConfigured() {
		return runSetupFlow(cfg, logger)
	}

	apiClient := api.NewClient(cfg.Server.URL, api.Options{
		Timeout:           cfg.Server.Timeout,
		MaxRetries:        cfg.Server.MaxRetries,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
	}, logger)
	svcs := api.NewServices(apiClient)

	var tokens domain.TokenSource = auth.Static(cfg.Server.Token)
	if cfg.Server.TokenFile != "" {
		tokens = auth.File{Path: cfg.Server.TokenFile}
	}

	st := store.New(logger)
	snap, err := store.OpenSnapshot(cfg.Cache.Dir, cfg.Server.URL, logger)
	if err != nil {
		// Run without persistence rather than refuse to start
		logger.Warn("failed to open snapshot, continuing without", "error", err)
		snap, _ = store.OpenSnapshot("", "", logger)
	}
	defer snap.Close()
	detach := snap.Attach(st)
	defer detach()

	client := query.NewClient(st, query.Options{
		StaleTime:      cfg.Cache.StaleTime,
		RefetchOnFocus: cfg.Cache.RefetchOnFocus,
	}, logger)
	defer client.Close()

	reg := hooks.New(client, hooks.Services{
		Awards:           svcs.Awards,
		BlogPosts:        svcs.BlogPosts,
		Courses:          svcs.Courses,
		Mcqs:             svcs.Mcqs,
		Publications:     svcs.Publications,
		PublicationStats: svcs.Publications,
		Quizzes:          svcs.Quizzes,
		Research:         svcs.Research,
	}, tokens, hooks.WithSnapshot(snap))

	idx := search.NewIndex(logger)
	defer idx.Close()
	idx.Track(st, hooks.TagAwards, search.Items[domain.Award])
	idx.Track(st, hooks.TagBlogPosts, search.Items[domain.BlogPost])
	idx.Track(st, hooks.TagCourses, search.Items[domain.Course])
	idx.Track(st, hooks.TagMcqs, search.Items[domain.Mcq])
	idx.Track(st, hooks.TagPublications, search.Items[domain.Publication])
	idx.Track(st, hooks.TagQuizzes, search.Items[domain.Quiz])
	idx.Track(st, hooks.TagResearchList, search.Items[domain.Research])

	model := tui.NewModel(reg, idx, cfg.Cache.PageSize)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runSetupFlow asks for the backend URL and an access token, checks that
// the backend answers, and saves the result.
func runSetupFlow(cfg *config.Config, logger *slog.Logger) error {
	fmt.Println()
	fmt.Println("Welcome to Folio!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter the API URL (e.g., https://cms.example.edu/api): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		serverURL := strings.TrimRight(strings.TrimSpace(input), "/")
		if serverURL == "" {
			fmt.Println("API URL cannot be empty. Please try again.")
			continue
		}

		fmt.Println()
		if err := checkWithSpinner(serverURL, cfg.Server, logger); err != nil {
			fmt.Printf("\n✗ Could not reach the API: %v\n", err)
			fmt.Println("Please check the URL and try again.")
			fmt.Println()
			continue
		}

		cfg.Server.URL = serverURL
		break
	}

	// Prompt for token (hidden input)
	fmt.Print("Access token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	fmt.Println()
	cfg.Server.Token = strings.TrimSpace(string(tokenBytes))
	if cfg.Server.Token == "" {
		return fmt.Errorf("access token cannot be empty")
	}

	if err := config.SaveConfig(cfg, ""); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run folio again to start the application.")

	return nil
}

// checkWithSpinner lists one course to check the API is reachable
func checkWithSpinner(serverURL string, server config.ServerConfig, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c := api.NewClient(serverURL, api.Options{Timeout: server.Timeout, MaxRetries: 0}, logger)
	courses := api.NewServices(c).Courses

	resultCh := make(chan error, 1)
	go func() {
		_, err := courses.List(ctx, domain.Scope{}, 0, 1)
		resultCh <- err
	}()

	frame := 0
	fmt.Printf("\r%s Connecting...", spinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-resultCh:
			fmt.Print(clearSpinnerLine)
			if err != nil {
				return err
			}
			fmt.Println("✓ Connected")
			return nil

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Connecting...", spinnerFrames[frame%len(spinnerFrames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return fmt.Errorf("connection timed out")
		}
	}
}
