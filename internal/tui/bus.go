package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// bus is an unbounded queue from background tasks into the update loop.
// Task goroutines publish from any goroutine; the model keeps exactly
// one await command outstanding, re-armed after every delivery, so no
// publish can be lost and publishers never block.
type bus struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

func newBus() *bus {
	return &bus{wake: make(chan struct{}, 1)}
}

func (b *bus) publish(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// await returns a command that blocks until a message is available and
// hands it to the update loop wrapped in busMsg.
func (b *bus) await() tea.Cmd {
	return func() tea.Msg {
		return busMsg{inner: b.next()}
	}
}

func (b *bus) next() tea.Msg {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return msg
		}
		b.mu.Unlock()
		<-b.wake
	}
}
