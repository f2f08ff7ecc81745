package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/item"
)

func testUpdate() Update {
	return Update{
		Feed: item.Feed{Data: []item.Item{{Message: "Ana Lima", Icon: "/assets/icon-teams.png"}}},
		At:   time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	if err := s.Send(context.Background(), testUpdate()); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(context.Background(), Update{Feed: item.Empty()}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	var env struct {
		Type string `json:"type"`
		Data Update `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "feed" || env.Data.Feed.Data[0].Message != "Ana Lima" {
		t.Fatalf("got %+v", env)
	}
	if !strings.Contains(lines[1], `"data":[]`) {
		t.Fatalf("empty feed must encode as an array: %s", lines[1])
	}
}

func TestWebhook_Delivers(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Send(context.Background(), testUpdate()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(got, []byte(`"message":"Ana Lima"`)) {
		t.Fatalf("body: %s", got)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testUpdate()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls: got %d, want 3", calls.Load())
	}
}

func TestWebhook_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	err := wh.Send(context.Background(), testUpdate())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("got %v, want status 500 error", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls: got %d, want 3", calls.Load())
	}
}

type failingSink struct{ err error }

func (f failingSink) Send(context.Context, Update) error { return f.err }
func (f failingSink) Close() error                        { return f.err }

func TestRouter_FanOut(t *testing.T) {
	boom := errors.New("boom")
	var delivered int
	cb := NewCallback(func(ctx context.Context, u Update) error {
		delivered++
		return nil
	})

	r := NewRouter(nil, failingSink{err: boom}, cb, NewCallback(nil))
	if r.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", r.Len())
	}
	if err := r.Send(context.Background(), testUpdate()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want first error", err)
	}
	if delivered != 1 {
		t.Fatal("a failing sink must not block the others")
	}
	if err := r.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close: got %v, want boom", err)
	}
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testUpdate()); err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("got %v, want status 401 error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: got %d, want 1", calls.Load())
	}
}

func TestWebhook_TooManyRequestsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testUpdate()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls: got %d, want 2", calls.Load())
	}
}

func TestRouter_DeliverSkipsSinksUpToDate(t *testing.T) {
	var good, flaky int
	down := true
	r := NewRouter(nil,
		NewCallback(func(context.Context, Update) error { good++; return nil }),
		NewCallback(func(context.Context, Update) error {
			if down {
				return errors.New("webhook down")
			}
			flaky++
			return nil
		}),
	)

	u := testUpdate()
	if n, err := r.Deliver(context.Background(), u); err == nil || n != 1 {
		t.Fatalf("first Deliver: n=%d err=%v, want 1 and an error", n, err)
	}

	down = false
	n, err := r.Deliver(context.Background(), u)
	if err != nil || n != 1 {
		t.Fatalf("second Deliver: n=%d err=%v, want 1 and nil", n, err)
	}
	if good != 1 {
		t.Fatalf("healthy sink: got %d deliveries, want 1", good)
	}
	if flaky != 1 {
		t.Fatalf("recovered sink: got %d deliveries, want 1", flaky)
	}

	if n, err := r.Deliver(context.Background(), u); err != nil || n != 0 {
		t.Fatalf("unchanged Deliver: n=%d err=%v, want 0 and nil", n, err)
	}
}
