package item

import (
	"encoding/json"
	"testing"
)

func TestEmpty_EncodesArray(t *testing.T) {
	data, err := json.Marshal(Empty())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"data":[]}` {
		t.Fatalf("got %s, want {\"data\":[]}", data)
	}
}

func TestNotReady(t *testing.T) {
	f := NotReady("feed not initialized", "/assets/icon.png")
	if f.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", f.Len())
	}
	data, _ := json.Marshal(f)
	want := `{"data":[{"message":"feed not initialized","icon":"/assets/icon.png"}]}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestEqual(t *testing.T) {
	a := Feed{Data: []Item{{Message: "Ana", Icon: "i"}, {Message: "Bo", Icon: "i"}}}
	b := Feed{Data: []Item{{Message: "Ana", Icon: "i"}, {Message: "Bo", Icon: "i"}}}
	c := Feed{Data: []Item{{Message: "Bo", Icon: "i"}, {Message: "Ana", Icon: "i"}}}

	if !a.Equal(b) {
		t.Error("identical feeds must be equal")
	}
	if a.Equal(c) {
		t.Error("order must matter")
	}
	if !Empty().Equal(Feed{}) {
		t.Error("nil and empty data must be equal")
	}
}
