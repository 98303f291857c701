package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/nhle/meltmail/internal/app"
	"github.com/nhle/meltmail/internal/credential"
	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/mcpserver"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/store"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", model.DefaultConfigPath(), "path to the config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: meltmail [flags] [mcp]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Without arguments meltmail starts the terminal UI.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "\"mcp\" serves the mailbox tools over stdio instead.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("meltmail", version)
		return
	}

	mode := flag.Arg(0)
	if mode != "" && mode != "mcp" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if mode == "mcp" {
		err = runMCP(cfg)
	} else {
		err = runTUI(cfg, *configPath)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// newSession builds the provider client and a session that keeps its
// credential in the configured backend.
func newSession(cfg *model.AppConfig) (*session.Session, *provider.Client, error) {
	creds, err := credential.Open(cfg.Session.CredentialBackend, model.ConfigDir())
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	client := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.FallbackDomain, cfg.ProviderTimeout())
	sess := session.New(client,
		session.WithLifetime(cfg.SessionLifetime()),
		session.WithCredentials(creds),
	)
	if err := sess.PurgeCredential(); err != nil {
		log.Printf("purging stale credential: %v", err)
	}
	return sess, client, nil
}

func runTUI(cfg *model.AppConfig, configPath string) error {
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
		f, err := tea.LogToFile(cfg.LogFile, "meltmail")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sess, client, err := newSession(cfg)
	if err != nil {
		return err
	}

	presenter := app.NewPresenter()
	svc := inbox.New(sess, client, presenter, inbox.WithStore(st))
	defer svc.Close()

	root := app.New(svc, presenter, cfg,
		app.WithStore(st),
		app.WithConfigPath(configPath),
	)
	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// runMCP serves the mailbox tools on stdin/stdout. Logs go to stderr so
// they never corrupt the protocol stream.
func runMCP(cfg *model.AppConfig) error {
	log.SetOutput(os.Stderr)

	sess, client, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Destroy()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("meltmail %s serving MCP on stdio", version)
	if err := mcpserver.NewServer(sess, client, version).Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}
