package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dalnet/tmichat/internal/irc"
	"github.com/dalnet/tmichat/internal/storage"
)

// handleCommand processes a command typed in a channel
func (b *Bot) handleCommand(ev irc.Command) {
	name := strings.ToLower(ev.Name)
	if name == "" {
		return
	}

	switch name {
	case "help":
		b.cmdHelp(ev)
	case "version":
		b.cmdVersion(ev)
	case "viewers":
		b.cmdViewers(ev)
	case "commands":
		b.cmdCommands(ev)
	case "stats":
		b.cmdStats(ev)
	case "addcommand":
		b.cmdAddCommand(ev)
	case "delcommand":
		b.cmdDelCommand(ev)
	case "logs":
		b.cmdLogs(ev)
	case "shutdown":
		b.cmdShutdown(ev)
	default:
		b.cmdCustom(ev, name)
	}
}

func (b *Bot) cmdHelp(ev irc.Command) {
	p := b.chat.CommandPrefix()
	b.say(ev.Channel, fmt.Sprintf("Commands: %[1]shelp %[1]sversion %[1]sviewers %[1]scommands %[1]sstats", p))
	if b.isMod(ev.Channel, ev.Viewer) {
		b.say(ev.Channel, fmt.Sprintf("Moderators: %[1]saddcommand <name> <response> %[1]sdelcommand <name> %[1]slogs [count]", p))
	}
}

func (b *Bot) cmdVersion(ev irc.Command) {
	b.say(ev.Channel, fmt.Sprintf("tmichat version %s (built %s, commit %s)", Version, BuildDate, GitCommit))
}

func (b *Bot) cmdViewers(ev irc.Command) {
	if b.viewers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := b.viewers.Viewers(ctx, ev.Channel)
	if err != nil {
		b.log.Warn("viewer lookup failed", zap.String("channel", ev.Channel), zap.Error(err))
		b.say(ev.Channel, "Sorry, the viewer list is unavailable right now")
		return
	}
	mods := len(list.Chatters["moderators"])
	b.say(ev.Channel, fmt.Sprintf("%d viewers in chat (%d moderators)", list.Count, mods))
}

func (b *Bot) cmdCommands(ev irc.Command) {
	names, err := b.store.Commands(context.Background(), ev.Channel)
	if err != nil {
		b.log.Error("listing commands", zap.Error(err))
		return
	}
	if len(names) == 0 {
		b.say(ev.Channel, "No custom commands yet")
		return
	}
	p := b.chat.CommandPrefix()
	for i, n := range names {
		names[i] = p + n
	}
	b.say(ev.Channel, "Custom commands: "+strings.Join(names, " "))
}

func (b *Bot) cmdStats(ev irc.Command) {
	stats, err := b.store.Stats(context.Background(), ev.Channel)
	if err != nil {
		b.log.Error("loading stats", zap.Error(err))
		return
	}
	if len(stats) == 0 {
		b.say(ev.Channel, "No custom commands yet")
		return
	}
	if len(stats) > 5 {
		stats = stats[:5]
	}
	parts := make([]string, len(stats))
	for i, st := range stats {
		parts[i] = fmt.Sprintf("%s%s (%d)", b.chat.CommandPrefix(), st.Name, st.Uses)
	}
	b.say(ev.Channel, "Most used: "+strings.Join(parts, ", "))
}

func (b *Bot) cmdAddCommand(ev irc.Command) {
	if !b.isMod(ev.Channel, ev.Viewer) {
		b.say(ev.Channel, fmt.Sprintf("Sorry %s, only moderators can add commands", ev.Viewer))
		b.logAction(ev.Channel, ev.Viewer, "tried to add a command but isn't a moderator")
		return
	}

	parts := strings.SplitN(strings.TrimSpace(ev.Value), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.say(ev.Channel, fmt.Sprintf("Usage: %saddcommand <name> <response>", b.chat.CommandPrefix()))
		return
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], b.chat.CommandPrefix()))
	response := strings.TrimSpace(parts[1])

	if reserved(name) {
		b.say(ev.Channel, fmt.Sprintf("%s%s is a built-in command", b.chat.CommandPrefix(), name))
		return
	}

	if err := b.store.SetCommand(context.Background(), ev.Channel, name, response, ev.Viewer); err != nil {
		b.log.Error("saving command", zap.Error(err))
		b.say(ev.Channel, "Error saving command")
		return
	}
	b.say(ev.Channel, fmt.Sprintf("Command %s%s has been set", b.chat.CommandPrefix(), name))
	b.logAction(ev.Channel, ev.Viewer, fmt.Sprintf("set command %s to %q", name, response))
}

func (b *Bot) cmdDelCommand(ev irc.Command) {
	if !b.isMod(ev.Channel, ev.Viewer) {
		b.say(ev.Channel, fmt.Sprintf("Sorry %s, only moderators can delete commands", ev.Viewer))
		b.logAction(ev.Channel, ev.Viewer, "tried to delete a command but isn't a moderator")
		return
	}

	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ev.Value), b.chat.CommandPrefix()))
	if name == "" {
		b.say(ev.Channel, fmt.Sprintf("Usage: %sdelcommand <name>", b.chat.CommandPrefix()))
		return
	}

	err := b.store.DeleteCommand(context.Background(), ev.Channel, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.say(ev.Channel, fmt.Sprintf("No such command %s%s", b.chat.CommandPrefix(), name))
	case err != nil:
		b.log.Error("deleting command", zap.Error(err))
		b.say(ev.Channel, "Error deleting command")
	default:
		b.say(ev.Channel, fmt.Sprintf("Command %s%s has been deleted", b.chat.CommandPrefix(), name))
		b.logAction(ev.Channel, ev.Viewer, "deleted command "+name)
	}
}

func (b *Bot) cmdLogs(ev irc.Command) {
	if !b.isMod(ev.Channel, ev.Viewer) {
		return
	}

	count := 3
	if n, err := strconv.Atoi(strings.TrimSpace(ev.Value)); err == nil && n > 0 {
		count = n
	}
	if count > 10 {
		count = 10
	}

	logs, err := b.store.RecentLogs(context.Background(), ev.Channel, count)
	if err != nil {
		b.log.Error("loading audit log", zap.Error(err))
		return
	}
	if len(logs) == 0 {
		b.say(ev.Channel, "Nothing logged yet")
		return
	}
	for _, e := range logs {
		who := e.Viewer
		if who == "" {
			who = "*"
		}
		b.say(ev.Channel, fmt.Sprintf("[%s] %s: %s", e.Time.UTC().Format("Jan 02 15:04"), who, e.Action))
	}
}

func (b *Bot) cmdShutdown(ev irc.Command) {
	if !strings.EqualFold(ev.Channel, ev.Viewer) {
		b.logAction(ev.Channel, ev.Viewer, "issued the shutdown command but isn't the broadcaster")
		return
	}

	// No reply: Shutdown closes the connection before the queue drains.
	b.logAction(ev.Channel, ev.Viewer, "shutdown command")
	if b.onShutdown != nil {
		b.onShutdown()
	}
}

func (b *Bot) cmdCustom(ev irc.Command, name string) {
	c, err := b.store.Command(context.Background(), ev.Channel, name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.log.Error("loading command", zap.String("name", name), zap.Error(err))
		}
		return
	}
	b.say(ev.Channel, c.Response)
}

func reserved(name string) bool {
	switch name {
	case "help", "version", "viewers", "commands", "stats", "addcommand", "delcommand", "logs", "shutdown":
		return true
	}
	return false
}
