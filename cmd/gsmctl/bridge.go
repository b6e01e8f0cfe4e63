package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/gsmgate/pkg/session"
)

// startBridge launches the goroutine that turns session events into
// snapshotMsg. It only calls p.Send() and never touches model state. Bursts
// of events are folded into a single snapshot. The returned function stops
// the goroutine and waits for it to exit.
func startBridge(ctx context.Context, p *tea.Program, sess *session.Session) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	bus := sess.Bus()
	sub := bus.Subscribe(64)

	wg.Go(func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				kinds := drain(sub, []session.EventKind{ev.Kind})
				p.Send(snapshotMsg{snap: sess.Snapshot(), kinds: kinds})
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}

// drain collects the kinds of events already queued on sub without blocking.
func drain(sub *session.Subscription, kinds []session.EventKind) []session.EventKind {
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return kinds
			}
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}
