package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	kit "crexbot/internal/transport"
	logx "crexbot/pkg/logx"
)

// Command is one slash command. All state-changing commands are owner-only;
// the bot is an operator tool, not a public service.
type Command struct {
	Name        string
	Description string
	OwnerOnly   bool
	Timeout     time.Duration
	Handle      func(ctx context.Context, req *Request) error
}

// CallbackHandler handles one inline-button action; payload is the third
// segment of "scope:action:payload".
type CallbackHandler func(ctx context.Context, req *Request) error

// Request carries one routed update into a handler.
type Request struct {
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	Payload string
	ReqID   string

	Callback *kit.Callback // set for callback requests
}

type CommandManager struct {
	mu        sync.RWMutex
	commands  map[string]*Command
	callbacks map[string]CallbackHandler // "scope:action"
	owners    []int64

	adapter kit.Adapter
	log     logx.Logger
	jobs    chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64) *CommandManager {
	return &CommandManager{
		commands:  map[string]*Command{},
		callbacks: map[string]CallbackHandler{},
		owners:    append([]int64(nil), owners...),
		adapter:   adapter,
		log:       log,
		jobs:      make(chan func(), 256),
	}
}

func (m *CommandManager) Register(cmd Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cmd
	m.commands[strings.ToLower(cmd.Name)] = &c
}

func (m *CommandManager) RegisterCallback(scope, action string, h CallbackHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[scope+":"+action] = h
}

// SetOwners updates the owner list. Safe to call during hot-reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// MenuCommands returns the registered commands for the Telegram menu, sorted
// by name.
func (m *CommandManager) MenuCommands() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(m.commands))
	for _, c := range m.commands {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// DispatchLoop routes updates to handlers through a bounded worker pool until
// ctx ends or the updates channel closes.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			switch up.Kind {
			case kit.UpdateMessage:
				m.routeMessage(ctx, up)
			case kit.UpdateCallback:
				m.routeCallback(ctx, up)
			}
		}
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)

	m.mu.RLock()
	cmd := m.commands[word]
	m.mu.RUnlock()
	if cmd == nil {
		// Ignore unknown commands in groups; answer in private chats.
		if !msg.IsGroup {
			m.send(ctx, chatOf(msg), "Unknown command.")
		}
		return
	}
	if cmd.OwnerOnly && !m.isOwner(msg.FromID) {
		m.send(ctx, chatOf(msg), "unauthorized")
		return
	}

	req := &Request{
		Chat:    chatOf(msg),
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    parts[1:],
		ReqID:   newReqID(),
	}
	m.enqueue(ctx, req, cmd.Timeout, cmd.Handle)
}

func (m *CommandManager) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	key := parts[0] + ":" + parts[1]
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	m.mu.RLock()
	h := m.callbacks[key]
	m.mu.RUnlock()
	if h == nil {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if !m.isOwner(cb.FromID) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "unauthorized")
		return
	}

	req := &Request{
		Chat:     kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:   cb.FromID,
		Command:  "cb:" + key,
		Payload:  payload,
		ReqID:    newReqID(),
		Callback: cb,
	}
	m.enqueue(ctx, req, 0, func(c context.Context, r *Request) error {
		err := h(c, r)
		// Stop the "loading" spinner regardless of handler outcome.
		_ = m.adapter.AnswerCallback(c, cb.ID, "")
		return err
	})
}

func (m *CommandManager) enqueue(ctx context.Context, req *Request, timeout time.Duration, h func(context.Context, *Request) error) {
	log := m.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command))

	job := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in command handler",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		c := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			c, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		if err := h(c, req); err != nil {
			log.Warn("command failed", logx.Duration("dur", time.Since(start)), logx.Err(err))
			return
		}
		log.Debug("command handled", logx.Duration("dur", time.Since(start)))
	}

	select {
	case m.jobs <- job:
	default:
		log.Warn("command queue full, rejecting")
		m.send(ctx, req.Chat, "busy, try again")
	}
}

func (m *CommandManager) send(ctx context.Context, to kit.ChatTarget, text string) {
	if _, err := m.adapter.SendText(ctx, to, text, nil); err != nil {
		m.log.Debug("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}

func (m *CommandManager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if o == id {
			return true
		}
	}
	return false
}

func chatOf(msg *kit.Message) kit.ChatTarget {
	return kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
}

func newReqID() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
