package ready

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/browser/browsertest"
)

const (
	testMarker   = `[id="chat-header-title"]`
	testTryAgain = `a[id="try-again-link"]`
	testRegistry = "https://teams.example/registrar/prod/V2/registrations"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newWaiter(s *sleepRecorder) *Waiter {
	return New(Config{
		Marker:          testMarker,
		TryAgain:        testTryAgain,
		RegistrationURL: testRegistry,
		Quiescence:      10 * time.Second,
		MaxTryAgain:     2,
		Sleep:           s.sleep,
	})
}

func TestWait_Ready(t *testing.T) {
	page := browsertest.NewPage()
	page.SetElement(testMarker, &browsertest.Element{})
	page.AddRequest(testRegistry + "?x=1")

	s := &sleepRecorder{}
	res, err := newWaiter(s).Wait(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ready() || !res.Registered {
		t.Fatalf("got %+v, want ready and registered", res)
	}
	if len(s.calls) != 1 || s.calls[0] != 10*time.Second {
		t.Fatalf("quiescence: got %v, want [10s]", s.calls)
	}
	if got := page.Lookups(testMarker); len(got) != 1 || got[0] != 60*time.Second {
		t.Fatalf("marker timeout: got %v, want [60s]", got)
	}
}

func TestWait_IdempotentOnReadyPage(t *testing.T) {
	page := browsertest.NewPage()
	page.SetElement(testMarker, &browsertest.Element{})
	page.AddRequest(testRegistry)

	s := &sleepRecorder{}
	w := newWaiter(s)
	for i := 0; i < 2; i++ {
		res, err := w.Wait(context.Background(), page)
		if err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		if !res.Ready() || res.Retries != 0 {
			t.Fatalf("wait %d: got %+v", i, res)
		}
	}
	if len(s.calls) != 2 {
		t.Fatalf("quiescence calls: got %d, want 2", len(s.calls))
	}
	if len(page.Navigations()) != 0 {
		t.Fatal("readiness wait must not navigate")
	}
}

func TestWait_RegistrationTimeoutIsAdvisory(t *testing.T) {
	page := browsertest.NewPage()
	page.SetElement(testMarker, &browsertest.Element{})

	s := &sleepRecorder{}
	res, err := newWaiter(s).Wait(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ready() {
		t.Fatalf("outcome: got %v, want ready", res.Outcome)
	}
	if res.Registered {
		t.Fatal("Registered: got true, want false")
	}
	if len(s.calls) != 1 {
		t.Fatal("quiescence must still run after a registration timeout")
	}
}

func TestWait_TryAgainRecovers(t *testing.T) {
	page := browsertest.NewPage()
	link := &browsertest.Element{}
	link.OnClick = func() {
		page.RemoveElement(testTryAgain)
		page.SetElement(testMarker, &browsertest.Element{})
	}
	page.SetElement(testTryAgain, link)

	s := &sleepRecorder{}
	res, err := newWaiter(s).Wait(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ready() {
		t.Fatalf("outcome: got %v, want ready", res.Outcome)
	}
	if res.Retries != 1 || link.Clicks() != 1 {
		t.Fatalf("retries: got %d (clicks %d), want 1", res.Retries, link.Clicks())
	}
	if got := page.Lookups(testTryAgain); len(got) != 1 || got[0] != 5*time.Second {
		t.Fatalf("try-again timeout: got %v, want [5s]", got)
	}
}

func TestWait_TryAgainBounded(t *testing.T) {
	page := browsertest.NewPage()
	link := &browsertest.Element{}
	page.SetElement(testTryAgain, link)

	s := &sleepRecorder{}
	res, err := newWaiter(s).Wait(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeRetriesExhausted {
		t.Fatalf("outcome: got %v, want retries_exhausted", res.Outcome)
	}
	if link.Clicks() != 2 {
		t.Fatalf("clicks: got %d, want 2", link.Clicks())
	}
	if len(s.calls) != 0 {
		t.Fatal("quiescence must not run when the page never rendered")
	}
}

func TestWait_NoMarkerNoTryAgain(t *testing.T) {
	page := browsertest.NewPage()

	res, err := newWaiter(&sleepRecorder{}).Wait(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNoMarker || res.Ready() {
		t.Fatalf("got %+v, want no_marker", res)
	}
}

func TestWait_ClickFailureAbsorbed(t *testing.T) {
	page := browsertest.NewPage()
	page.SetElement(testTryAgain, &browsertest.Element{ClickErr: errors.New("node detached")})

	res, err := newWaiter(&sleepRecorder{}).Wait(context.Background(), page)
	if err != nil {
		t.Fatalf("click failure must be absorbed, got %v", err)
	}
	if res.Outcome != OutcomeNoMarker {
		t.Fatalf("outcome: got %v, want no_marker", res.Outcome)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWaiter(&sleepRecorder{}).Wait(ctx, browsertest.NewPage())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeReady.String() != "ready" || OutcomeNoMarker.String() != "no_marker" ||
		OutcomeRetriesExhausted.String() != "retries_exhausted" {
		t.Fatal("unexpected outcome names")
	}
}
