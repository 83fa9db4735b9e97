package app

import (
	"context"
	"sync"
	"testing"
	"time"

	kit "crexbot/internal/transport"
	logx "crexbot/pkg/logx"
)

type recordingAdapter struct {
	kit.Adapter

	mu        sync.Mutex
	texts     []string
	callbacks []string
	notify    chan struct{}
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{notify: make(chan struct{}, 32)}
}

func (r *recordingAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return kit.MessageRef{}, nil
}

func (r *recordingAdapter) AnswerCallback(_ context.Context, id string, _ string) error {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, id)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recordingAdapter) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recordingAdapter) waitEvent(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("no adapter activity")
	}
}

func runDispatcher(t *testing.T, cm *CommandManager) chan<- kit.Update {
	t.Helper()
	updates := make(chan kit.Update, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cm.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates
}

func msgUpdate(fromID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: 100, FromID: fromID, Text: text,
	}}
}

func TestDispatchRunsHandler(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, []int64{1})
	handled := make(chan *Request, 1)
	cm.Register(Command{Name: "ping", Handle: func(_ context.Context, req *Request) error {
		handled <- req
		return nil
	}})

	updates := runDispatcher(t, cm)
	updates <- msgUpdate(7, "/ping@crexbot one two")

	select {
	case req := <-handled:
		if req.Command != "ping" {
			t.Errorf("Command = %q", req.Command)
		}
		if len(req.Args) != 2 || req.Args[0] != "one" || req.Args[1] != "two" {
			t.Errorf("Args = %v", req.Args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestDispatchOwnerGate(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, []int64{1})
	cm.Register(Command{Name: "stop", OwnerOnly: true, Handle: func(context.Context, *Request) error {
		t.Error("owner-only handler ran for non-owner")
		return nil
	}})

	updates := runDispatcher(t, cm)
	updates <- msgUpdate(999, "/stop")

	ad.waitEvent(t)
	got := ad.sent()
	if len(got) != 1 || got[0] != "unauthorized" {
		t.Fatalf("replies = %v, want unauthorized", got)
	}
}

func TestDispatchOwnerGateHotReload(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, []int64{1})
	handled := make(chan struct{}, 1)
	cm.Register(Command{Name: "stop", OwnerOnly: true, Handle: func(context.Context, *Request) error {
		handled <- struct{}{}
		return nil
	}})
	cm.SetOwners([]int64{999})

	updates := runDispatcher(t, cm)
	updates <- msgUpdate(999, "/stop")

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("new owner rejected after SetOwners")
	}
}

func TestDispatchIgnoresPlainText(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, nil)
	cm.Register(Command{Name: "ping", Handle: func(context.Context, *Request) error { return nil }})

	updates := runDispatcher(t, cm)
	updates <- msgUpdate(1, "hello there")
	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: 100, FromID: 1, Text: "/nope", IsGroup: true,
	}}

	time.Sleep(100 * time.Millisecond)
	if got := ad.sent(); len(got) != 0 {
		t.Fatalf("replies = %v, want none", got)
	}
}

func TestDispatchCallback(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, []int64{1})
	handled := make(chan string, 1)
	cm.RegisterCallback("match", "sub", func(_ context.Context, req *Request) error {
		handled <- req.Payload
		return nil
	})

	updates := runDispatcher(t, cm)
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb1", FromID: 1, ChatID: 100, Data: "match:sub:3",
	}}

	select {
	case payload := <-handled:
		if payload != "3" {
			t.Errorf("payload = %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback handler not invoked")
	}
	// The spinner must always be answered.
	ad.waitEvent(t)
}

func TestDispatchCallbackOwnerGate(t *testing.T) {
	t.Parallel()

	ad := newRecordingAdapter()
	cm := NewCommandManager(logx.Nop(), ad, []int64{1})
	cm.RegisterCallback("match", "sub", func(context.Context, *Request) error {
		t.Error("handler ran for non-owner callback")
		return nil
	})

	updates := runDispatcher(t, cm)
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb1", FromID: 999, ChatID: 100, Data: "match:sub:3",
	}}

	ad.waitEvent(t)
	time.Sleep(50 * time.Millisecond)
}

func TestMenuCommandsSorted(t *testing.T) {
	t.Parallel()

	cm := NewCommandManager(logx.Nop(), newRecordingAdapter(), nil)
	cm.Register(Command{Name: "stop", Description: "stop streams", Handle: func(context.Context, *Request) error { return nil }})
	cm.Register(Command{Name: "matches", Description: "list", Handle: func(context.Context, *Request) error { return nil }})

	got := cm.MenuCommands()
	if len(got) != 2 || got[0].Command != "matches" || got[1].Command != "stop" {
		t.Fatalf("MenuCommands() = %v", got)
	}
}
