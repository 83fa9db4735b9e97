package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"crexbot/internal/crex"
	logx "crexbot/pkg/logx"
)

type fakeSource struct {
	mu      sync.Mutex
	snap    *crex.MatchSnapshot
	snapErr error
	stats   *crex.PlayerStats
	odds    *crex.OddsSnapshot
}

func (f *fakeSource) MatchSummary(context.Context, string) (*crex.MatchSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snap, nil
}

func (f *fakeSource) PlayerStats(context.Context, string) (*crex.PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stats == nil {
		return nil, errors.New("no stats")
	}
	return f.stats, nil
}

func (f *fakeSource) MatchOdds(context.Context, string) (*crex.OddsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.odds == nil {
		return nil, errors.New("no odds")
	}
	return f.odds, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	texts  []string
	photos int
	notify chan string
}

func (f *fakeBroadcaster) SendText(_ context.Context, text string) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.notify != nil {
		select {
		case f.notify <- text:
		default:
		}
	}
}

func (f *fakeBroadcaster) SendPhoto(context.Context, []byte, string) {
	f.mu.Lock()
	f.photos++
	f.mu.Unlock()
}

func (f *fakeBroadcaster) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func testService(t *testing.T, src Source, out Broadcaster) *Service {
	t.Helper()
	svc := New(Config{PollInterval: time.Hour}, src, out, nil, logx.Nop())
	svc.composer = fixedComposer()
	return svc
}

func TestSubscribeRequiresStart(t *testing.T) {
	t.Parallel()

	svc := testService(t, &fakeSource{}, &fakeBroadcaster{})
	if err := svc.Subscribe("m1"); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestSubscribeFiresImmediateTick(t *testing.T) {
	t.Parallel()

	src := &fakeSource{snap: &crex.MatchSnapshot{
		Score: "10/0", Overs: "1.2",
		CRR: "5.0", RRR: crex.NA,
		Partnership: crex.NA, LastWicket: crex.NA,
		Status:     "Live",
		BallEvents: []string{"1"},
	}}
	out := &fakeBroadcaster{notify: make(chan string, 16)}
	svc := testService(t, src, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	if err := svc.Subscribe("m1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case got := <-out.notify:
		if got != "1" {
			t.Fatalf("first message = %q, want raw event", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message from immediate tick")
	}
	svc.Stop(context.Background())
}

func TestResubscribeReplacesLoopAndResetsState(t *testing.T) {
	t.Parallel()

	src := &fakeSource{snapErr: errors.New("down")}
	svc := testService(t, src, &fakeBroadcaster{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	if err := svc.Subscribe("m1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	svc.mu.Lock()
	first := svc.subs["m1"]
	first.state.lastEvent = "stale"
	svc.mu.Unlock()

	if err := svc.Subscribe("m1"); err != nil {
		t.Fatalf("re-Subscribe: %v", err)
	}

	svc.mu.Lock()
	second := svc.subs["m1"]
	if len(svc.subs) != 1 {
		t.Fatalf("want 1 subscription, have %d", len(svc.subs))
	}
	svc.mu.Unlock()

	if second == first {
		t.Fatal("re-subscribe did not replace the subscription")
	}
	if second.state.lastEvent != "" {
		t.Fatal("re-subscribe did not reset state")
	}
	select {
	case <-first.done:
	case <-time.After(2 * time.Second):
		t.Fatal("old loop did not stop")
	}
	svc.Stop(context.Background())
}

func TestUnsubscribeAndActive(t *testing.T) {
	t.Parallel()

	src := &fakeSource{snapErr: errors.New("down")}
	svc := testService(t, src, &fakeBroadcaster{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	for _, url := range []string{"m2", "m1", "m3"} {
		if err := svc.Subscribe(url); err != nil {
			t.Fatalf("Subscribe(%s): %v", url, err)
		}
	}
	if got, want := svc.Active(), []string{"m1", "m2", "m3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Active() = %v, want %v", got, want)
	}

	if !svc.Unsubscribe("m2") {
		t.Fatal("Unsubscribe(m2) = false")
	}
	if svc.Unsubscribe("m2") {
		t.Fatal("second Unsubscribe(m2) = true")
	}
	if got := svc.UnsubscribeAll(); got != 2 {
		t.Fatalf("UnsubscribeAll() = %d, want 2", got)
	}
	if got := svc.Active(); len(got) != 0 {
		t.Fatalf("Active() after UnsubscribeAll = %v", got)
	}
	svc.Stop(context.Background())
}

func TestTickFetchErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	src := &fakeSource{snapErr: errors.New("503")}
	out := &fakeBroadcaster{}
	svc := testService(t, src, out)

	sub := &subscription{url: "m1", state: newMatchState()}
	sub.state.lastEvent = "4"

	svc.tick(context.Background(), sub)

	if sub.state.lastEvent != "4" {
		t.Fatalf("lastEvent changed to %q on a failed tick", sub.state.lastEvent)
	}
	if got := out.sent(); len(got) != 0 {
		t.Fatalf("unexpected broadcasts on failed tick: %v", got)
	}
}

func TestTickAnnouncesOverOnce(t *testing.T) {
	t.Parallel()

	snap := &crex.MatchSnapshot{
		Score: "88/2", Overs: "11.3",
		CRR: "7.8", RRR: "9.1",
		Partnership: crex.NA, LastWicket: crex.NA,
		Status:     "Live",
		BallEvents: []string{"0", "1"},
	}
	src := &fakeSource{snap: snap}
	out := &fakeBroadcaster{}
	svc := testService(t, src, out)

	sub := &subscription{url: "m1", state: newMatchState()}
	svc.tick(context.Background(), sub)

	summaries := 0
	for _, m := range out.sent() {
		if m == "*CRR*: 7.8 | *RRR*: 9.1" {
			summaries++
		}
	}
	if summaries != 1 {
		t.Fatalf("over summary broadcast %d times in one over, want 1", summaries)
	}
	if sub.state.lastOverAnnounced != 11 {
		t.Fatalf("lastOverAnnounced = %d, want 11", sub.state.lastOverAnnounced)
	}
	if sub.state.lastEvent != "1" {
		t.Fatalf("lastEvent = %q, want %q", sub.state.lastEvent, "1")
	}

	// Same over on the next tick, no new events: nothing more goes out.
	before := len(out.sent())
	svc.tick(context.Background(), sub)
	if after := len(out.sent()); after != before {
		t.Fatalf("quiet tick broadcast %d extra messages", after-before)
	}
}

func TestTickOddsStateAdvancesOnlyOnSend(t *testing.T) {
	t.Parallel()

	odds := &crex.OddsSnapshot{WinProbabilities: map[string]string{"IND": "64%"}}
	src := &fakeSource{
		snap: &crex.MatchSnapshot{
			Score: "10/0", Overs: "2.0",
			CRR: "5.0", RRR: crex.NA,
			Partnership: crex.NA, LastWicket: crex.NA,
			Status: "Live",
		},
		odds: odds,
	}
	out := &fakeBroadcaster{}
	svc := testService(t, src, out)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// No renderer installed: the throttle fires but nothing is sent, and
	// state must not advance.
	sub := &subscription{url: "m1", state: newMatchState()}
	svc.tick(context.Background(), sub)
	if sub.state.lastOdds != nil || out.photos != 0 {
		t.Fatal("odds state advanced without a send")
	}

	svc.render = func(o *crex.OddsSnapshot) ([]byte, error) {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	svc.tick(context.Background(), sub)
	if out.photos != 1 {
		t.Fatalf("photos = %d, want 1", out.photos)
	}
	if !odds.Equal(sub.state.lastOdds) || !sub.state.lastOddsAt.Equal(now) {
		t.Fatal("odds state not recorded after send")
	}

	// Unchanged odds never resend.
	svc.tick(context.Background(), sub)
	if out.photos != 1 {
		t.Fatalf("photos = %d after unchanged tick, want 1", out.photos)
	}
}
