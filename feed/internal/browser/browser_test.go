package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestTimeoutErr_ChildDeadline(t *testing.T) {
	err := timeoutErr(context.Background(), fmt.Errorf("lookup: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestTimeoutErr_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timeoutErr(ctx, context.DeadlineExceeded)
	if errors.Is(err, ErrTimeout) {
		t.Fatal("parent cancellation must not be reported as ErrTimeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestTimeoutErr_OtherError(t *testing.T) {
	base := errors.New("node detached")
	if err := timeoutErr(context.Background(), base); err != base {
		t.Fatalf("got %v, want %v", err, base)
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "ping": true}

	tests := []struct {
		typ  proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeMedia, false},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeXHR, false},
		{proto.NetworkResourceTypePing, true},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%s): got %v, want %v", tt.typ, got, tt.want)
		}
	}
}
