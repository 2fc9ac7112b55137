package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/telemgr/telemgr/internal/dlbot"
	"github.com/telemgr/telemgr/internal/tgclient"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dlbot failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var arg struct {
		config   string
		registry string
		state    string
		verbose  bool
	}
	flag.StringVar(&arg.config, "config", "bot-config.json", "bot config file")
	flag.StringVar(&arg.registry, "registry", "downloads.db", "download registry database")
	flag.StringVar(&arg.state, "state", ".state", "client state directory")
	flag.BoolVar(&arg.verbose, "verbose", false, "debug logging to stderr")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load env")
	}

	log := newLogger(arg.verbose)
	slog.SetDefault(log)

	cfg, err := dlbot.LoadConfig(arg.config)
	if err != nil {
		return err
	}

	registry, err := dlbot.OpenRegistry(arg.registry)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	client, err := tgclient.New(tgclient.Options{
		APIID:    cfg.Telegram.APIID,
		APIHash:  cfg.Telegram.APIHash,
		BotToken: cfg.Telegram.BotToken,
		StateDir: arg.state,
		Logger:   log,
		Verbose:  arg.verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	bot, err := dlbot.New(dlbot.Options{
		Config:   cfg,
		Registry: registry,
		Fetcher:  dlbot.NewFetcher(client),
		Sender:   tgclient.NewMessenger(client),
		Logger:   log,
	})
	if err != nil {
		return err
	}
	return dlbot.NewRunner(bot, client).Run(ctx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
