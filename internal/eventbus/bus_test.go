package eventbus

import (
	"testing"
	"time"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

func evt(tx string) model.TradeEvent {
	return model.TradeEvent{TxHash: tx, Wallet: "w", TokenOut: "t"}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	b := New("test", 3)

	b.Publish(evt("A"))
	b.Publish(evt("B"))
	b.Publish(evt("C"))
	b.Publish(evt("D")) // should evict A

	var got []string
	for len(got) < 3 {
		select {
		case e := <-b.Consume():
			got = append(got, e.TxHash)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	want := []string{"B", "C", "D"}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("position %d: got %q, want %q", i, got[i], w)
		}
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestPublishUnderCapacityDoesNotDrop(t *testing.T) {
	b := New("test", 5)
	b.Publish(evt("A"))
	b.Publish(evt("B"))
	if b.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", b.Dropped())
	}
	if b.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", b.Depth())
	}
}
