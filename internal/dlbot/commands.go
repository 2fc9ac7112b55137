package dlbot

import (
	"context"
	"log/slog"

	"github.com/gotd/td/tg"
)

// commandMenu is published to Telegram so the commands show up in the
// chat UI.
var commandMenu = []tg.BotCommand{
	{Command: "start", Description: "Welcome and usage hints"},
	{Command: "help", Description: "How downloads are sorted"},
	{Command: "status", Description: "Pool state and recent downloads"},
	{Command: "version", Description: "Bot version"},
}

// registerCommands replaces any menu left over from an earlier run
// with the current one.
func registerCommands(ctx context.Context, api *tg.Client, log *slog.Logger) error {
	if _, err := api.BotsResetBotCommands(ctx, &tg.BotsResetBotCommandsRequest{
		Scope: &tg.BotCommandScopeDefault{},
	}); err != nil {
		log.Debug("reset bot commands failed", "error", err)
	}

	_, err := api.BotsSetBotCommands(ctx, &tg.BotsSetBotCommandsRequest{
		Scope:    &tg.BotCommandScopeDefault{},
		Commands: commandMenu,
	})
	return err
}
