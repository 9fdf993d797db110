package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/cnrmurphy/pop3d/internal/authstore"
	"github.com/cnrmurphy/pop3d/internal/config"
	"github.com/cnrmurphy/pop3d/internal/logging"
	"github.com/cnrmurphy/pop3d/internal/maildir"
	"github.com/cnrmurphy/pop3d/internal/metrics"
	"github.com/cnrmurphy/pop3d/internal/pop3"
	"github.com/cnrmurphy/pop3d/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "pop3d",
		Usage: "POP3 mail-retrieval server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "./pop3d.toml", Usage: "path to configuration file"},
			&cli.StringFlag{Name: "listen", Usage: "listen address (overrides config)"},
			&cli.StringFlag{Name: "maildir", Usage: "maildir root path (overrides config)"},
			&cli.StringFlag{Name: "authdb", Usage: "credential database path (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error)"},
			&cli.IntFlag{Name: "max-connections", Usage: "maximum concurrent connections"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:      "add-user",
				Usage:     "create a user and initialize their mailbox",
				ArgsUsage: "<username> <password>",
				Action:    runAddUser,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration file and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}

	overrides := config.Overrides{
		Listen:         c.String("listen"),
		Maildir:        c.String("maildir"),
		AuthDB:         c.String("authdb"),
		LogLevel:       c.String("log-level"),
		MaxConnections: c.Int("max-connections"),
	}
	cfg = overrides.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LogLevel)

	auth, err := authstore.Open(cfg.AuthDB)
	if err != nil {
		return fmt.Errorf("error opening credential database: %w", err)
	}
	defer func() {
		if err := auth.Close(); err != nil {
			logger.Error("error closing credential database", "error", err)
		}
	}()

	store := maildir.New(cfg.Maildir)
	locks := pop3.NewLockTable()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	srv, err := server.New(server.Config{
		Address:        cfg.Listen,
		IdleTimeout:    cfg.Timeouts.IdleTimeout(),
		MaxConnections: cfg.Limits.MaxConnections,
		Logger:         logger,
		Handler:        pop3.Handler(auth, store, locks, collector),
	})
	if err != nil {
		return fmt.Errorf("error creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	}

	logger.Info("starting pop3d",
		"hostname", cfg.Hostname,
		"listen", cfg.Listen,
		"maildir", cfg.Maildir,
	)

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("POP3 server stopped")
	return nil
}

func runAddUser(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: pop3d add-user <username> <password>", 1)
	}
	username := c.Args().Get(0)
	password := c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	auth, err := authstore.Open(cfg.AuthDB)
	if err != nil {
		return fmt.Errorf("error opening credential database: %w", err)
	}
	defer func() {
		_ = auth.Close()
	}()

	created, err := auth.CreateUser(username, password)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	if !created {
		return cli.Exit(fmt.Sprintf("user %s already exists", username), 1)
	}

	if err := maildir.New(cfg.Maildir).InitUserMailbox(username); err != nil {
		return fmt.Errorf("error initializing mailbox: %w", err)
	}

	fmt.Printf("created user %s\n", username)
	return nil
}
