package persistence

import (
	"context"
	"log"
	"sync"

	"github.com/aristath/consilium/internal/events"
)

// Sink consumes run and round events from the bus and persists them to a
// Store. It runs on its own goroutine; persistence errors are logged and
// never propagate back into the run.
type Sink struct {
	store Store
	sub   <-chan events.Event
	wg    sync.WaitGroup
}

// NewSink subscribes to the bus and returns an unstarted sink.
func NewSink(store Store, bus *events.Bus) *Sink {
	return &Sink{
		store: store,
		sub:   bus.SubscribeAll(1024),
	}
}

// Start begins consuming events. The sink stops when the bus closes its
// subscription channel or ctx is cancelled.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-s.sub:
				if !ok {
					return
				}
				s.handle(ctx, evt)
			}
		}
	}()
}

// Wait blocks until the consuming goroutine has exited.
func (s *Sink) Wait() {
	s.wg.Wait()
}

func (s *Sink) handle(ctx context.Context, evt events.Event) {
	var err error
	switch e := evt.(type) {
	case events.RunStartedEvent:
		err = s.store.CreateRun(ctx, e.State)
	case events.RoundCompletedEvent:
		err = s.store.SaveRound(ctx, e.ID, e.State)
	case events.RunFinishedEvent:
		err = s.store.FinishRun(ctx, e.ID, e.Status, e.State.Err)
	default:
		return
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("transcript sink: failed to persist %s for run %s: %v", evt.EventType(), evt.RunID(), err)
	}
}
