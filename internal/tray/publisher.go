package tray

import (
	"sync"

	"github.com/example/barshell/internal/logging"
)

// Publisher hands views to a controller through a one-slot channel. A newer
// view replaces one the controller has not picked up yet, and a view equal
// to the last published one is skipped.
type Publisher struct {
	mu         sync.Mutex
	lastDigest string
	closed     bool
	updates    chan View
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{updates: make(chan View, 1)}
}

// Updates is the channel passed to Controller.Run.
func (p *Publisher) Updates() <-chan View {
	return p.updates
}

// Publish offers v to the controller. It reports false when v was skipped
// because nothing visible changed.
func (p *Publisher) Publish(v View) bool {
	digest := v.Digest()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if digest != "" && digest == p.lastDigest {
		return false
	}
	p.lastDigest = digest

	select {
	case p.updates <- v:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- v:
		default:
		}
	}
	logging.Debugf("tray: published view unread=%d total=%d digest=%.12s", v.Unread, v.Total, digest)
	return true
}

// Close ends the update stream; controllers treat it as a quit request.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.updates)
}
