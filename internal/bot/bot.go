// Package bot is a sample chat bot built on the irc session: custom command
// responses, viewer lookups and an audit log of moderator actions.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dalnet/tmichat/internal/irc"
	"github.com/dalnet/tmichat/internal/storage"
	"github.com/dalnet/tmichat/internal/tmiapi"
)

// Version information (set at build time or here)
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Chat sends chat lines. *irc.Session implements it.
type Chat interface {
	SendMessage(ctx context.Context, channel, text string) error
	CommandPrefix() string
}

// ViewerLister looks up who is in a channel. *tmiapi.Client implements it.
type ViewerLister interface {
	Viewers(ctx context.Context, channel string) (*tmiapi.ViewerList, error)
}

// Config wires the bot's collaborators.
type Config struct {
	Chat    Chat
	Store   *storage.Store
	Viewers ViewerLister
	Logger  *zap.Logger

	// OnShutdown is called when the broadcaster issues the shutdown command.
	OnShutdown func()
}

// Bot reacts to chat commands and moderation events.
type Bot struct {
	irc.NopHandler

	chat    Chat
	store   *storage.Store
	viewers ViewerLister
	log     *zap.Logger

	mu   sync.RWMutex
	mods map[string]map[string]bool // channel -> viewer -> moderator

	onShutdown func()
}

// New creates a bot. Register it on a session with Attach.
func New(cfg Config) *Bot {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		chat:       cfg.Chat,
		store:      cfg.Store,
		viewers:    cfg.Viewers,
		log:        log.Named("bot"),
		mods:       make(map[string]map[string]bool),
		onShutdown: cfg.OnShutdown,
	}
}

// Attach registers the bot's handlers on s and closes the store when s
// shuts down.
func (b *Bot) Attach(s *irc.Session) {
	s.Use(b)
	s.OnShutdown(func() {
		if err := b.store.Close(); err != nil {
			b.log.Warn("closing store", zap.Error(err))
		}
	})
}

func (b *Bot) OnCommand(_ *irc.Session, ev irc.Command) {
	b.handleCommand(ev)
}

func (b *Bot) OnModeChange(_ *irc.Session, ev irc.ModeChange) {
	b.mu.Lock()
	chanMods := b.mods[ev.Channel]
	if chanMods == nil {
		chanMods = make(map[string]bool)
		b.mods[ev.Channel] = chanMods
	}
	if ev.Granted {
		chanMods[ev.Viewer] = true
	} else {
		delete(chanMods, ev.Viewer)
	}
	b.mu.Unlock()

	b.log.Debug("moderator change", zap.String("channel", ev.Channel),
		zap.String("viewer", ev.Viewer), zap.Bool("granted", ev.Granted))
}

func (b *Bot) OnHostTarget(_ *irc.Session, ev irc.HostTarget) {
	if ev.Stopped() {
		b.logAction(ev.HostingChannel, "", fmt.Sprintf("stopped hosting (%d viewers)", ev.Viewers))
		return
	}
	b.logAction(ev.HostingChannel, "", fmt.Sprintf("hosting %s (%d viewers)", ev.TargetChannel, ev.Viewers))
}

func (b *Bot) OnChatCleared(_ *irc.Session, ev irc.ChatCleared) {
	if ev.WholeChannel() {
		b.logAction(ev.Channel, "", "chat cleared")
		return
	}
	b.logAction(ev.Channel, ev.Viewer, "messages cleared")
}

func (b *Bot) OnNotice(_ *irc.Session, ev irc.Notice) {
	switch ev.ID {
	case irc.NoticeTimeoutSuccess, irc.NoticeBanSuccess, irc.NoticeUnbanSuccess,
		irc.NoticeSlowOn, irc.NoticeSlowOff, irc.NoticeSubsOn, irc.NoticeSubsOff,
		irc.NoticeEmoteOnlyOn, irc.NoticeEmoteOnlyOff, irc.NoticeR9KOn, irc.NoticeR9KOff:
		b.logAction(ev.Channel, "", ev.Text)
	case irc.NoticeMsgChannelSuspended:
		b.log.Warn("channel suspended", zap.String("channel", ev.Channel))
	default:
		b.log.Debug("notice", zap.String("channel", ev.Channel), zap.String("id", ev.ID), zap.String("text", ev.Text))
	}
}

func (b *Bot) OnMembershipChange(_ *irc.Session, ev irc.MembershipChange) {
	b.log.Debug("membership", zap.String("channel", ev.Channel),
		zap.String("viewer", ev.Viewer), zap.Bool("joined", ev.Joined))
}

// isMod reports whether viewer may manage channel's commands. The
// broadcaster always may.
func (b *Bot) isMod(channel, viewer string) bool {
	if strings.EqualFold(channel, viewer) {
		return true
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mods[channel][viewer]
}

func (b *Bot) say(channel, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.chat.SendMessage(ctx, channel, text); err != nil {
		b.log.Warn("send failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (b *Bot) logAction(channel, viewer, action string) {
	b.log.Info("audit", zap.String("channel", channel), zap.String("viewer", viewer), zap.String("action", action))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := b.store.AddLog(ctx, storage.LogEntry{Channel: channel, Viewer: viewer, Action: action})
	if err != nil {
		b.log.Error("saving audit log", zap.Error(err))
	}
}
