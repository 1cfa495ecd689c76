package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func nextMsg(t *testing.T, b *bus) tea.Msg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- b.next() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
		return nil
	}
}

func TestBusDeliversInOrder(t *testing.T) {
	b := newBus()
	b.publish(errorMsg{text: "one"})
	b.publish(errorMsg{text: "two"})
	b.publish(errorMsg{text: "three"})

	for _, want := range []string{"one", "two", "three"} {
		msg, ok := nextMsg(t, b).(errorMsg)
		if !ok || msg.text != want {
			t.Fatalf("got %#v, want errorMsg %q", msg, want)
		}
	}
}

func TestBusAwaitBlocksUntilPublish(t *testing.T) {
	b := newBus()

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.publish(loadingFinishedMsg{})
	}()

	msg := nextMsg(t, b)
	if _, ok := msg.(loadingFinishedMsg); !ok {
		t.Fatalf("got %#v, want loadingFinishedMsg", msg)
	}
}

func TestBusAwaitWrapsInBusMsg(t *testing.T) {
	b := newBus()
	b.publish(errorMsg{text: "wrapped"})

	msg := b.await()()
	wrapped, ok := msg.(busMsg)
	if !ok {
		t.Fatalf("got %#v, want busMsg", msg)
	}
	if inner, ok := wrapped.inner.(errorMsg); !ok || inner.text != "wrapped" {
		t.Fatalf("inner = %#v", wrapped.inner)
	}
}

func TestBusConcurrentPublishersLoseNothing(t *testing.T) {
	b := newBus()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.publish(loadingStartedMsg{label: "x"})
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if _, ok := nextMsg(t, b).(loadingStartedMsg); !ok {
			t.Fatalf("message %d had wrong type", i)
		}
	}
}
