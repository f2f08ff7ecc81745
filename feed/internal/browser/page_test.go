package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

const registrationURL = "https://teams.microsoft.com/registrar/prod/V2/registrations"

func newTrackedPage() *rodPage {
	return &rodPage{logger: slog.Default(), notify: make(chan struct{})}
}

func TestWaitRequest_RecordedBeforeWait(t *testing.T) {
	p := newTrackedPage()
	p.observe("https://teams.microsoft.com/api/mt/emea/beta/users")
	p.observe(registrationURL + "/v2/endpoints")

	if err := p.WaitRequest(context.Background(), registrationURL, 50*time.Millisecond); err != nil {
		t.Fatalf("WaitRequest: %v", err)
	}
}

func TestWaitRequest_ArrivesDuringWait(t *testing.T) {
	p := newTrackedPage()
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.observe("https://statics.teams.cdn.office.net/bundle.js")
		time.Sleep(20 * time.Millisecond)
		p.observe(registrationURL + "/v2/endpoints")
	}()

	start := time.Now()
	if err := p.WaitRequest(context.Background(), registrationURL, 5*time.Second); err != nil {
		t.Fatalf("WaitRequest: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("WaitRequest returned late: %v", elapsed)
	}
}

func TestWaitRequest_Timeout(t *testing.T) {
	p := newTrackedPage()
	p.observe("https://teams.microsoft.com/api/other")

	err := p.WaitRequest(context.Background(), registrationURL, 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestWaitRequest_ParentCancelled(t *testing.T) {
	p := newTrackedPage()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := p.WaitRequest(ctx, registrationURL, 5*time.Second)
	if errors.Is(err, ErrTimeout) {
		t.Fatal("parent cancellation must not be reported as ErrTimeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWaitRequest_ResetForgetsEarlierRequests(t *testing.T) {
	p := newTrackedPage()
	p.observe(registrationURL + "/v2/endpoints")
	p.resetRequests()

	err := p.WaitRequest(context.Background(), registrationURL, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout after reset", err)
	}
}

func TestObserve_CapsRecordedRequests(t *testing.T) {
	p := newTrackedPage()
	for i := 0; i < maxSeenRequests+10; i++ {
		p.observe(fmt.Sprintf("https://teams.microsoft.com/r/%d", i))
	}

	p.mu.Lock()
	n, first := len(p.seen), p.seen[0]
	p.mu.Unlock()
	if n != maxSeenRequests {
		t.Fatalf("seen: got %d, want %d", n, maxSeenRequests)
	}
	if first != "https://teams.microsoft.com/r/10" {
		t.Fatalf("oldest kept: got %q", first)
	}

	ok, _ := p.matchRequest("https://teams.microsoft.com/r/5")
	if ok {
		t.Fatal("dropped request still matched")
	}
}
