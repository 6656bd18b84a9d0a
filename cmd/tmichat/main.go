package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dalnet/tmichat/internal/bot"
	"github.com/dalnet/tmichat/internal/config"
	"github.com/dalnet/tmichat/internal/irc"
	applog "github.com/dalnet/tmichat/internal/log"
	"github.com/dalnet/tmichat/internal/storage"
	"github.com/dalnet/tmichat/internal/tmiapi"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Command line flags
	configPath := pflag.StringP("config", "c", "./config.yaml", "Path to configuration file")
	envPath := pflag.StringP("env", "e", ".env", "Path to a .env file with credentials")
	logLevel := pflag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	showVersion := pflag.BoolP("version", "v", false, "Show version information and exit")
	pflag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("tmichat version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Set version info in bot package
	bot.Version = version
	bot.BuildDate = buildDate
	bot.GitCommit = gitCommit

	if err := run(*configPath, *envPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "tmichat: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath, logLevel string) error {
	// Make config path absolute
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.LoadEnv(envPath); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := applog.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	session, err := irc.New(cfg.Session(logger))
	if err != nil {
		store.Close()
		return err
	}

	b := bot.New(bot.Config{
		Chat:    session,
		Store:   store,
		Viewers: &tmiapi.Client{BaseURL: cfg.ViewerAPIURL},
		Logger:  logger,
		OnShutdown: func() {
			if err := session.Shutdown(); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
		},
	})
	b.Attach(session)

	// Signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("received shutdown signal")
		session.Shutdown()
	}()

	// Connect and run
	if err := session.Connect(ctx); err != nil {
		session.Shutdown()
		return fmt.Errorf("failed to connect: %w", err)
	}
	if len(cfg.Channels) > 0 {
		if err := session.JoinChannels(cfg.Channels); err != nil {
			session.Shutdown()
			return err
		}
	}

	logger.Info("connected, serving", zap.Strings("channels", session.Channels()))
	return session.ServeForever(context.Background())
}
