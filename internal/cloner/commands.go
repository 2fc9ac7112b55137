package cloner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-faster/errors"

	"github.com/telemgr/telemgr/internal/config"
	"github.com/telemgr/telemgr/internal/entity"
)

// command pairs a text pattern with its handler. The submatch slice of
// the pattern is passed through.
type command struct {
	re  *regexp.Regexp
	run func(ctx context.Context, ev Event, m []string)
}

// commandTable lists every chat command in match priority order. The
// first matching pattern wins; text matching nothing is ignored.
func (b *Bot) commandTable() []command {
	return []command{
		{regexp.MustCompile(`^[Ss]ync$`), b.cmdSync},
		{regexp.MustCompile(`^[Ll]ink @?(-?[1-9a-zA-Z][a-zA-Z0-9_]{4,}) to @?(-?[1-9a-zA-Z][a-zA-Z0-9_]{4,})$`), b.cmdLink},
		{regexp.MustCompile(`^[Uu]nlink @?(-?[1-9a-zA-Z][a-zA-Z0-9_]{4,})$`), b.cmdUnlink},
		{regexp.MustCompile(`^[Aa]dd filter "(.+)" to "(.+)"$`), b.cmdAddFilter},
		{regexp.MustCompile(`^[Rr]emove filter "(.+)"$`), b.cmdRemoveFilter},
		{regexp.MustCompile(`^[Ff]ilters$`), b.cmdListFilters},
		{regexp.MustCompile(`^[Ss]ettings`), b.cmdSettings},
		{regexp.MustCompile(`^[Ll]inks`), b.cmdListLinks},
		{regexp.MustCompile(`^([Oo]n|[Oo]ff)$`), b.cmdToggleBot},
		{regexp.MustCompile(`^[Ff]ilters ([Oo]n|[Oo]ff)$`), b.cmdToggleFilters},
		{regexp.MustCompile(`^[Ss]ign ([Oo]n|[Oo]ff)$`), b.cmdToggleSignature},
		{regexp.MustCompile(`^[Ss]ign text (.+)$`), b.cmdSignatureText},
		{regexp.MustCompile(`^[Hh]elp$`), b.cmdHelp},
	}
}

func (b *Bot) handleCommand(ctx context.Context, ev Event) {
	if ev.Text == "" {
		return
	}
	for _, c := range b.commands {
		if m := c.re.FindStringSubmatch(ev.Text); m != nil {
			c.run(ctx, ev, m)
			return
		}
	}
}

// reply answers the command message. Failures are logged, never
// propagated.
func (b *Bot) reply(ctx context.Context, ev Event, text string) {
	if _, err := b.sender.SendText(ctx, ev.Chat, ev.MsgID, text); err != nil {
		b.log.Error("command reply failed", "chat", ev.Chat, "error", err)
	}
}

// edit rewrites a previously sent acknowledgement.
func (b *Bot) edit(ctx context.Context, chat int64, msgID int, text string) {
	if err := b.sender.Edit(ctx, chat, msgID, text); err != nil {
		b.log.Error("acknowledgement edit failed", "chat", chat, "error", err)
	}
}

func (b *Bot) cmdSync(ctx context.Context, ev Event, _ []string) {
	ackID, err := b.sender.SendText(ctx, ev.Chat, 0, "Syncing dialogs...")
	if err != nil {
		b.log.Error("sync acknowledgement failed", "chat", ev.Chat, "error", err)
		return
	}

	n, err := b.syncer.SyncDialogs(ctx)
	if err != nil {
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error in syncing chats:\n %v", err))
		return
	}
	b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("✅ Successfully synced %d chats", n))
}

func (b *Bot) cmdLink(ctx context.Context, ev Event, m []string) {
	ackID, err := b.sender.SendText(ctx, ev.Chat, ev.MsgID, "Processing...")
	if err != nil {
		b.log.Error("link acknowledgement failed", "chat", ev.Chat, "error", err)
		return
	}

	src, err := b.resolver.Resolve(ctx, entity.Parse(m[1]))
	if err != nil {
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	dst, err := b.resolver.Resolve(ctx, entity.Parse(m[2]))
	if err != nil {
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error: %v", err))
		return
	}

	switch err := b.cfg.AddRule(config.Rule{Source: src.ID, Target: dst.ID}); {
	case errors.Is(err, config.ErrRuleCycle):
		b.edit(ctx, ev.Chat, ackID, "❗️ Cycle detected! This would cause an infinite loop.")
	case errors.Is(err, config.ErrRuleExists):
		b.edit(ctx, ev.Chat, ackID, "❗️ This link already exists")
	case err != nil:
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error: %v", err))
	default:
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("✅ [ `%s` ] linked to [ `%s` ]", src.Title, dst.Title))
	}
}

func (b *Bot) cmdUnlink(ctx context.Context, ev Event, m []string) {
	ackID, err := b.sender.SendText(ctx, ev.Chat, ev.MsgID, "Processing...")
	if err != nil {
		b.log.Error("unlink acknowledgement failed", "chat", ev.Chat, "error", err)
		return
	}

	src, err := b.resolver.Resolve(ctx, entity.Parse(m[1]))
	if err != nil {
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error: %v", err))
		return
	}

	n, err := b.cfg.RemoveRules(src.ID)
	if err != nil {
		b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	if n == 0 {
		b.edit(ctx, ev.Chat, ackID, "❗️ No links found for this entity")
		return
	}
	b.edit(ctx, ev.Chat, ackID, fmt.Sprintf("✅ [ `%s` ] unlinked from %d entities", src.Title, n))
}

func (b *Bot) cmdAddFilter(ctx context.Context, ev Event, m []string) {
	from, to := m[1], m[2]

	switch err := b.cfg.AddFilter(config.Filter{From: from, To: to}); {
	case errors.Is(err, config.ErrFilterCycle):
		b.reply(ctx, ev, "❗️ Cycle detected! This would cause an infinite loop.")
	case errors.Is(err, config.ErrFilterExists):
		existing, _ := b.cfg.FindFilter(from)
		b.reply(ctx, ev, fmt.Sprintf("❗️ Word **%s** is already filtered to **%s**", from, existing.To))
	case err != nil:
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
	default:
		b.reply(ctx, ev, fmt.Sprintf("✅ **%s** will be edited to **%s** (case insensitive)", from, to))
	}
}

func (b *Bot) cmdRemoveFilter(ctx context.Context, ev Event, m []string) {
	n, err := b.cfg.RemoveFilters(m[1])
	if err != nil {
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	if n == 0 {
		b.reply(ctx, ev, "❗️ This filter does not exist.")
		return
	}
	b.reply(ctx, ev, fmt.Sprintf("✅ **%s** filters erased.", m[1]))
}

func (b *Bot) cmdListFilters(ctx context.Context, ev Event, _ []string) {
	cfg := b.cfg.Snapshot()
	if len(cfg.Filters) == 0 {
		b.reply(ctx, ev, "❗️ No filters submitted.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📁 Filter list: \n\n")
	for _, f := range cfg.Filters {
		fmt.Fprintf(&sb, "**%s** ➡️ **%s**\n", f.From, f.To)
	}
	b.reply(ctx, ev, sb.String())
}

func (b *Bot) cmdSettings(ctx context.Context, ev Event, _ []string) {
	cfg := b.cfg.Snapshot()

	var sb strings.Builder
	sb.WriteString("⚙️ Settings: \n\n")
	fmt.Fprintf(&sb, "`Bot status   ` ➡ **%s**\n", onOff(cfg.BotEnabled))
	fmt.Fprintf(&sb, "`Filter words ` ➡ **%s**\n", enabledDisabled(cfg.FilterWords))
	fmt.Fprintf(&sb, "`Add signature` ➡ **%s**\n", enabledDisabled(cfg.AddSignature))
	if cfg.Signature != "" {
		fmt.Fprintf(&sb, "`Signature    ` ⬇️ \n**%s**", cfg.Signature)
	} else {
		sb.WriteString("`Signature    ` ➡ **Not defined**")
	}
	b.reply(ctx, ev, sb.String())
}

var numberEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

func (b *Bot) cmdListLinks(ctx context.Context, ev Event, _ []string) {
	cfg := b.cfg.Snapshot()
	if len(cfg.Entities) == 0 {
		b.reply(ctx, ev, "❗️ There is no linked entities.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🖇 Linked entities:\n")
	for i, r := range cfg.Entities {
		number := fmt.Sprintf("%d️⃣", i+1)
		if i < len(numberEmojis) {
			number = numberEmojis[i]
		}
		fmt.Fprintf(&sb, "%s〰️%s ⏩ %s\n", number, b.entityTitle(ctx, r.Source), b.entityTitle(ctx, r.Target))
		fmt.Fprintf(&sb, "      {%d ⏩ %d}\n", r.Source, r.Target)
	}
	b.reply(ctx, ev, sb.String())
}

// entityTitle resolves a display name, falling back to the bare id.
func (b *Bot) entityTitle(ctx context.Context, id int64) string {
	info, err := b.resolver.Resolve(ctx, entity.Ref{Kind: entity.Numeric, ID: id})
	if err != nil {
		return entity.FallbackTitle(id)
	}
	return info.Title
}

func (b *Bot) cmdToggleBot(ctx context.Context, ev Event, m []string) {
	on := strings.EqualFold(m[1], "on")
	if err := b.cfg.SetEnabled(on); err != nil {
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	if on {
		b.reply(ctx, ev, "👀 Bot turned on")
	} else {
		b.reply(ctx, ev, "😴 Bot turned off")
	}
}

func (b *Bot) cmdToggleFilters(ctx context.Context, ev Event, m []string) {
	on := strings.EqualFold(m[1], "on")
	if err := b.cfg.SetFilterWords(on); err != nil {
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	if on {
		b.reply(ctx, ev, "✅ Filter words enabled")
	} else {
		b.reply(ctx, ev, "✅ Filter words disabled")
	}
}

func (b *Bot) cmdToggleSignature(ctx context.Context, ev Event, m []string) {
	on := strings.EqualFold(m[1], "on")
	if err := b.cfg.SetAddSignature(on); err != nil {
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	if on {
		b.reply(ctx, ev, "✅ Adding signature enabled")
	} else {
		b.reply(ctx, ev, "✅ Adding signature disabled")
	}
}

func (b *Bot) cmdSignatureText(ctx context.Context, ev Event, m []string) {
	if err := b.cfg.SetSignature(m[1]); err != nil {
		b.reply(ctx, ev, fmt.Sprintf("❗️ Error: %v", err))
		return
	}
	b.reply(ctx, ev, "✅ Signature updated:\n"+m[1])
}

const helpText = "🤖 **Live Cloning Bot Commands**\n" +
	"\n" +
	"**Entity Management:**\n" +
	"• `sync` - Sync all chats with bot\n" +
	"• `link @source to @target` - Link source to target entity\n" +
	"• `unlink @source` - Unlink source from all targets\n" +
	"• `links` - Show all linked entities\n" +
	"\n" +
	"**Word Filters:**\n" +
	"• `add filter \"word1\" to \"word2\"` - Filter word1 to word2\n" +
	"• `remove filter \"word1\"` - Remove all filters for word1\n" +
	"• `filters` - Show all word filters\n" +
	"• `filters on|off` - Enable/disable word filtering\n" +
	"\n" +
	"**Settings:**\n" +
	"• `settings` - Show current settings\n" +
	"• `on|off` - Turn bot on/off\n" +
	"• `sign on|off` - Enable/disable signature\n" +
	"• `sign text [text]` - Set signature text\n" +
	"• `help` - Show this help message\n" +
	"\n" +
	"**Note:** Bot only responds to itself and sudo users."

func (b *Bot) cmdHelp(ctx context.Context, ev Event, _ []string) {
	b.reply(ctx, ev, helpText)
}

func onOff(v bool) string {
	if v {
		return "On"
	}
	return "Off"
}

func enabledDisabled(v bool) string {
	if v {
		return "Enabled"
	}
	return "Disabled"
}
