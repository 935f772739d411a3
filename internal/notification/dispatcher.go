package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
)

// Dispatcher accepts fire-and-forget order events. Dispatch never blocks on
// delivery and never reports delivery failures to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

type guardedSink struct {
	sink    Sink
	breaker *gobreaker.CircuitBreaker
}

type AsyncDispatcher struct {
	sinks   []guardedSink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(timeout time.Duration, sinks ...Sink) *AsyncDispatcher {
	guarded := make([]guardedSink, 0, len(sinks))
	for _, s := range sinks {
		guarded = append(guarded, guardedSink{
			sink: s,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        "notification-" + s.Name(),
				MaxRequests: 1,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("notification: circuit breaker state changed")
				},
			}),
		})
	}

	return &AsyncDispatcher{sinks: guarded, timeout: timeout}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, event Event) {
	// Detach from the request so delivery outlives the response.
	base := context.WithoutCancel(ctx)

	for _, gs := range d.sinks {
		d.wg.Add(1)
		go func(gs guardedSink) {
			defer d.wg.Done()

			sendCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if err := d.send(sendCtx, gs, event); err != nil {
				metrics.NotificationFailures.WithLabelValues(gs.sink.Name(), string(event.Type)).Inc()
				log.Error().
					Err(err).
					Str("sink", gs.sink.Name()).
					Str("event_type", string(event.Type)).
					Stringer("order_id", event.OrderID).
					Msg("notification: delivery failed")
				return
			}

			log.Debug().
				Str("sink", gs.sink.Name()).
				Str("event_type", string(event.Type)).
				Stringer("order_id", event.OrderID).
				Msg("notification: delivered")
		}(gs)
	}
}

// send runs the sink under its breaker and gives up once ctx is done, even if
// the sink itself ignores ctx. The abandoned call counts as a breaker failure.
func (d *AsyncDispatcher) send(ctx context.Context, gs guardedSink, event Event) error {
	_, err := gs.breaker.Execute(func() (interface{}, error) {
		done := make(chan error, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done <- fmt.Errorf("sink panicked: %v", p)
				}
			}()
			done <- gs.sink.Send(ctx, event)
		}()

		select {
		case err := <-done:
			return nil, err
		case <-ctx.Done():
			return nil, fmt.Errorf("sink %s abandoned: %w", gs.sink.Name(), ctx.Err())
		}
	})
	return err
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}
