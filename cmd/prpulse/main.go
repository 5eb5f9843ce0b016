package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/prpulse/prpulse/internal/config"
	"github.com/prpulse/prpulse/internal/dashboard"
	"github.com/prpulse/prpulse/internal/domain"
	"github.com/prpulse/prpulse/internal/github"
	"github.com/prpulse/prpulse/internal/logging"
	"github.com/prpulse/prpulse/internal/notify"
	"github.com/prpulse/prpulse/internal/secret"
	"github.com/prpulse/prpulse/internal/store"
	"github.com/prpulse/prpulse/internal/tui"
)

func main() {
	configPath := pflag.String("config", defaultConfigPath(), "path to config file")
	noTUI := pflag.Bool("no-tui", false, "disable TUI mode")
	mock := pflag.Bool("mock", false, "use the offline mock dataset instead of the GitHub API")
	auth := pflag.Bool("auth", false, "prompt for a GitHub token, store it and exit")
	clearToken := pflag.Bool("clear-token", false, "remove the stored GitHub token and exit")
	diagnostics := pflag.Bool("diagnostics", false, "write a diagnostics report and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	secrets := secret.NewFileStore(cfg.DataDir)

	if *auth {
		if err := promptToken(secrets); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("token saved")
		return
	}
	if *clearToken {
		if err := secrets.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("token cleared")
		return
	}

	enableTUI := !*noTUI && os.Getenv("PRPULSE_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, logCloser, err := logging.Setup(cfg.LogFile, cfg.Log.Level, enableTUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	var client github.Client
	if *mock || cfg.MockClient {
		client = github.NewMockClient(cfg.MockViewer)
	} else {
		client = github.NewAPIClient(logger, secrets.Get, func() []domain.RepoSubscription {
			return st.Settings().WatchedRepositories
		})
	}

	notifier := notify.NewDispatcher(notify.NewExecSender(logger), st, logger)
	d := dashboard.New(client, st, notifier, logger)

	if *diagnostics {
		path, err := d.ExportDiagnostics()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if enableTUI {
		// TUI mode: dashboard in the background, TUI owning the terminal.
		errCh := make(chan error, 1)
		go func() {
			logger.Info("prpulse starting", "config", *configPath, "mock", *mock || cfg.MockClient)
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("dashboard error", "err", err)
				errCh <- err
			}
		}()

		m := tui.NewModel(d, cfg.TUI.RefreshInterval)
		p := tea.NewProgram(m, tea.WithAltScreen())

		go func() {
			if err := <-errCh; err != nil {
				p.Send(tea.Quit())
			}
		}()

		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
		stop()
	} else {
		logger.Info("prpulse starting (headless)", "config", *configPath)
		if err := d.Run(ctx); err != nil {
			logger.Error("dashboard error", "err", err)
			os.Exit(1)
		}
	}
}

func promptToken(secrets secret.Store) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	token, err := line.PasswordPrompt("GitHub token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if err := secrets.Set(token); err != nil {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "prpulse.yaml"
	}
	return home + "/.prpulse/config.yaml"
}
