package sensors

import (
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/orientation_tracker/internal/listener"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// TiltPoller samples an accelerometer source on a fixed interval while
// enabled and delivers the device tilt in degrees. Samples taken while the
// device lies flat are skipped.
type TiltPoller struct {
	src      orientation.Source
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	listener listener.Gate[int]
}

func NewTiltPoller(src orientation.Source, interval time.Duration) *TiltPoller {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &TiltPoller{src: src, interval: interval}
}

// EnableTiltSource starts polling, or only swaps the listener if polling is
// already running.
func (p *TiltPoller) EnableTiltSource(fn func(degrees int)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listener.Set(fn)
	if p.stop != nil {
		return nil
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
	return nil
}

// DisableTiltSource stops polling and waits for the polling goroutine to exit.
func (p *TiltPoller) DisableTiltSource() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	p.listener.Clear()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (p *TiltPoller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s, err := p.src.Next()
		if err != nil {
			log.Printf("tilt: sample error: %v", err)
			continue
		}
		deg, ok := s.Tilt()
		if !ok {
			continue
		}
		p.listener.Deliver(deg)
	}
}
