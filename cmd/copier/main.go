package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/telemgr/telemgr/internal/copier"
	"github.com/telemgr/telemgr/internal/tgclient"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("copier failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var arg struct {
		session string
		config  string
		state   string
		verbose bool
		check   bool
	}
	flag.StringVar(&arg.session, "session", "", "Telethon string session (or TG_STRING_SESSION)")
	flag.StringVar(&arg.config, "config", "copier.json", "pair file")
	flag.StringVar(&arg.state, "state", ".state", "client state directory")
	flag.BoolVar(&arg.verbose, "verbose", false, "debug logging to stderr")
	flag.BoolVar(&arg.check, "check", false, "list accessible chats and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load env")
	}

	log := newLogger(arg.verbose)
	slog.SetDefault(log)

	session := arg.session
	if session == "" {
		session = os.Getenv("TG_STRING_SESSION")
	}
	apiID, err := strconv.Atoi(os.Getenv("TG_API_ID"))
	if err != nil {
		return errors.Wrap(err, "parse TG_API_ID")
	}

	client, err := tgclient.New(tgclient.Options{
		APIID:         apiID,
		APIHash:       os.Getenv("TG_API_HASH"),
		StringSession: session,
		StateDir:      arg.state,
		Logger:        log,
		NoUpdates:     true,
		Verbose:       arg.verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if arg.check {
		return client.Run(ctx, func(ctx context.Context) error {
			return printAccessibleChats(ctx, client)
		})
	}

	pairs, err := copier.Open(arg.config, log)
	if err != nil {
		return err
	}
	job, err := copier.New(copier.Options{
		Pairs:    pairs,
		Telegram: copier.NewTelegram(client, log),
		Logger:   log,
	})
	if err != nil {
		return err
	}
	return client.Run(ctx, job.Run)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printAccessibleChats(ctx context.Context, client *tgclient.Client) error {
	fmt.Println("✅ Successfully connected to Telegram!")

	self := client.Self()
	if self == nil {
		return errors.New("no self user")
	}
	username, _ := self.GetUsername()
	fmt.Printf("\n🆔 Your Account: %s (@%s) - ID: %d\n", self.FirstName, username, self.ID)
	fmt.Printf("✅ You can always use 'me' or your user ID: %d\n", self.ID)

	fmt.Println("\n📋 Accessible Chats/Channels:")
	fmt.Println(strings.Repeat("=", 50))

	dialogs, err := client.Dialogs(ctx)
	if err != nil {
		return err
	}

	var users, groups, channels int
	for _, d := range dialogs {
		switch d.Kind {
		case "User":
			users++
		case "Group":
			groups++
		case "Channel":
			channels++
		}
		var handle string
		if d.Username != "" {
			handle = fmt.Sprintf(" (@%s)", d.Username)
		}
		fmt.Printf("✅ %s: %s%s - ID: %d\n", d.Kind, d.Title, handle, d.ID)
	}

	fmt.Println("\n📊 Summary:")
	fmt.Printf("✅ Total accessible chats: %d\n", len(dialogs))
	fmt.Printf("👤 Users: %d\n", users)
	fmt.Printf("👥 Groups: %d\n", groups)
	fmt.Printf("📢 Channels: %d\n", channels)

	fmt.Println("\n💡 Forwarding Tips:")
	fmt.Println("• Use 'me' to forward from/to your own saved messages")
	fmt.Println("• Use the chat ID (numbers) for private chats")
	fmt.Println("• Use @username for public channels/groups")
	fmt.Println("• You can only forward FROM chats you're a member of")
	fmt.Println("• You can forward TO any accessible chat")
	return nil
}
