package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"crexbot/internal/crex"
	"crexbot/internal/engine"
	"crexbot/internal/notifier/broadcast"
	"crexbot/internal/storage"
	kit "crexbot/internal/transport"
	logx "crexbot/pkg/logx"
	"crexbot/pkg/tgui"
)

// Bot implements the operator command surface: match discovery, subscribe
// via inline buttons, stream control and channel probing.
type Bot struct {
	adapter kit.Adapter
	crex    *crex.Client
	engine  *engine.Service
	caster  *broadcast.Service
	store   storage.Store
	log     logx.Logger

	// matches shown per chat by the last /matches call; subscribe
	// callbacks resolve their index against this.
	mu      sync.Mutex
	matches map[int64][]crex.LiveMatch
}

func NewBot(adapter kit.Adapter, client *crex.Client, eng *engine.Service, caster *broadcast.Service, store storage.Store, log logx.Logger) *Bot {
	return &Bot{
		adapter: adapter,
		crex:    client,
		engine:  eng,
		caster:  caster,
		store:   store,
		log:     log,
		matches: map[int64][]crex.LiveMatch{},
	}
}

// RegisterAll installs the command surface on the dispatcher.
func (b *Bot) RegisterAll(cm *CommandManager) {
	cm.Register(Command{
		Name:        "start",
		Description: "welcome and usage",
		Handle:      b.handleStart,
	})
	cm.Register(Command{
		Name:        "matches",
		Description: "list live matches",
		OwnerOnly:   true,
		Timeout:     30 * time.Second,
		Handle:      b.handleMatches,
	})
	cm.Register(Command{
		Name:        "stop",
		Description: "stop all update streams",
		OwnerOnly:   true,
		Handle:      b.handleStop,
	})
	cm.Register(Command{
		Name:        "status",
		Description: "active streams and channels",
		OwnerOnly:   true,
		Handle:      b.handleStatus,
	})
	cm.Register(Command{
		Name:        "testchannel",
		Description: "probe broadcast channels",
		OwnerOnly:   true,
		Timeout:     30 * time.Second,
		Handle:      b.handleTestChannel,
	})
	cm.RegisterCallback("match", "sub", b.handleSubscribe)
}

func (b *Bot) handleStart(ctx context.Context, req *Request) error {
	b.log.Info("user started the bot", logx.Int64("from_id", req.FromID))
	_, err := b.adapter.SendText(ctx, req.Chat,
		"🏏 *Welcome to Crex Cricket Live Bot!*\n\n"+
			"Use /matches to see live matches and subscribe to ball-by-ball updates.",
		&kit.SendOptions{ParseMode: "Markdown"})
	return err
}

func (b *Bot) handleMatches(ctx context.Context, req *Request) error {
	matches, err := b.crex.LiveMatches(ctx)
	if err != nil {
		b.reply(ctx, req, "⚠️ Error fetching matches. Try again later.")
		return err
	}
	if len(matches) == 0 {
		b.reply(ctx, req, "🚫 No live matches currently available")
		return nil
	}

	b.mu.Lock()
	b.matches[req.Chat.ChatID] = matches
	b.mu.Unlock()

	kb := tgui.NewInline()
	for i, m := range matches {
		label := m.Team1 + " vs " + m.Team2 + " - " + m.Status
		kb.Row(tgui.Btn(label, tgui.Data("match", "sub", strconv.Itoa(i))))
	}
	_, err = b.adapter.SendText(ctx, req.Chat, "🔴 Live Matches - Select one:",
		&kit.SendOptions{ReplyMarkupAdapter: kb.Markup()})
	return err
}

func (b *Bot) handleSubscribe(ctx context.Context, req *Request) error {
	idx, err := strconv.Atoi(req.Payload)
	if err != nil {
		return fmt.Errorf("bad match index %q: %w", req.Payload, err)
	}

	b.mu.Lock()
	list := b.matches[req.Chat.ChatID]
	b.mu.Unlock()
	if idx < 0 || idx >= len(list) {
		b.reply(ctx, req, "That match list is stale, run /matches again.")
		return nil
	}
	m := list[idx]

	start := time.Now()
	err = b.engine.Subscribe(m.URL)
	b.audit(ctx, storage.AuditEntry{
		ActorID: req.FromID,
		ChatID:  req.Chat.ChatID,
		Action:  storage.ActionSubscribe,
		Match:   m.URL,
		Error:   errString(err),
		TookMS:  time.Since(start).Milliseconds(),
	})
	if err != nil {
		b.reply(ctx, req, "⚠️ Could not subscribe, try again.")
		return err
	}

	// Replace the picker message so repeated taps are obviously stale.
	if req.Callback != nil && req.Callback.MessageID != 0 {
		ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.Callback.MessageID}
		if e := b.adapter.EditText(ctx, ref, "✅ Subscribed to ball-by-ball live updates!", nil); e == nil {
			return nil
		}
	}
	b.reply(ctx, req, "✅ Subscribed to ball-by-ball live updates!")
	return nil
}

func (b *Bot) handleStop(ctx context.Context, req *Request) error {
	removed := b.engine.UnsubscribeAll()
	b.audit(ctx, storage.AuditEntry{
		ActorID: req.FromID,
		ChatID:  req.Chat.ChatID,
		Action:  storage.ActionStopAll,
		OK:      removed,
	})
	if removed > 0 {
		b.reply(ctx, req, fmt.Sprintf("🔴 Stopped %d update streams", removed))
	} else {
		b.reply(ctx, req, "No active update streams to stop")
	}
	return nil
}

func (b *Bot) handleStatus(ctx context.Context, req *Request) error {
	active := b.engine.Active()
	targets := b.caster.Targets()

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Streams*: %d\n", len(active))
	for _, url := range active {
		sb.WriteString("  • ")
		sb.WriteString(url)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "*Channels*: %d", len(targets))

	_, err := b.adapter.SendText(ctx, req.Chat, sb.String(),
		&kit.SendOptions{ParseMode: "Markdown", DisablePreview: true})
	return err
}

func (b *Bot) handleTestChannel(ctx context.Context, req *Request) error {
	start := time.Now()
	rep := b.caster.BroadcastText(ctx, "✅ Test message from bot to all channels!")
	b.audit(ctx, storage.AuditEntry{
		ActorID: req.FromID,
		ChatID:  req.Chat.ChatID,
		Action:  storage.ActionProbe,
		OK:      rep.OK(),
		Fail:    rep.Failed,
		TookMS:  time.Since(start).Milliseconds(),
	})
	if rep.Failed > 0 {
		b.reply(ctx, req, fmt.Sprintf("Sent to %d channels, %d failed", rep.OK(), rep.Failed))
		return nil
	}
	b.reply(ctx, req, "Test message sent to all channels!")
	return nil
}

// DiscoveryDigest is the cron job body: a compact digest of currently live
// matches, broadcast to all channels.
func (b *Bot) DiscoveryDigest(ctx context.Context) error {
	matches, err := b.crex.LiveMatches(ctx)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("🏏 *Live now:*\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "• %s vs %s - %s\n", m.Team1, m.Team2, m.Status)
	}
	b.caster.SendText(ctx, sb.String())
	return nil
}

func (b *Bot) reply(ctx context.Context, req *Request, text string) {
	if _, err := b.adapter.SendText(ctx, req.Chat, text, nil); err != nil {
		b.log.Debug("reply failed", logx.Int64("chat_id", req.Chat.ChatID), logx.Err(err))
	}
}

func (b *Bot) audit(ctx context.Context, e storage.AuditEntry) {
	if b.store == nil {
		return
	}
	if err := b.store.AppendAudit(ctx, e); err != nil {
		b.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
