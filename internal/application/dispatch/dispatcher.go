package dispatch

import (
	"context"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Dispatcher applies upstream events to a watcher from a single goroutine.
//
// It owns the filter decision: Filter is evaluated once per added sensor and
// updates of sensors that were never accepted are dropped. Removals always reach
// the watcher, and a re-add that now fails the filter removes the earlier copy.
// Accepted names survive a closed connection, since the watcher may keep their
// sensors mirrored.
type Dispatcher struct {
	watcher  domain.SensorWatcher
	logger   *logging.Logger
	accepted map[string]struct{}
}

func New(watcher domain.SensorWatcher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		watcher:  watcher,
		logger:   logger,
		accepted: make(map[string]struct{}),
	}
}

// Run applies events until the context is cancelled or the channel is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("dispatcher: context cancelled", logging.AttachError(ctx.Err())...)
			return
		case event, ok := <-events:
			if !ok {
				d.logger.Debug("dispatcher: event stream closed")
				return
			}
			d.Apply(event)
		}
	}
}

// Apply delivers one event to the watcher.
func (d *Dispatcher) Apply(event domain.Event) {
	switch event.Kind {
	case domain.EventBatchStart:
		d.watcher.BatchStart()
	case domain.EventBatchStop:
		d.watcher.BatchStop()
	case domain.EventSensorAdded:
		if !d.watcher.Filter(event.Definition) {
			if _, ok := d.accepted[event.Definition.Name]; ok {
				delete(d.accepted, event.Definition.Name)
				d.watcher.SensorRemoved(event.Definition.Name)
				break
			}
			infra.IncEventsDropped()
			return
		}
		d.accepted[event.Definition.Name] = struct{}{}
		d.watcher.SensorAdded(event.Definition)
	case domain.EventSensorRemoved:
		delete(d.accepted, event.Name)
		d.watcher.SensorRemoved(event.Name)
	case domain.EventSensorUpdated:
		if _, ok := d.accepted[event.Name]; !ok {
			infra.IncEventsDropped()
			return
		}
		d.watcher.SensorUpdated(event.Name, event.Value, event.Status, event.Timestamp)
	case domain.EventStateChanged:
		d.watcher.StateUpdated(event.State)
	default:
		d.logger.Warn("dispatcher: unknown event", "kind", event.Kind.String())
		return
	}
	infra.RecordEvent(event.Kind.String())
}

var _ domain.EventDispatcher = (*Dispatcher)(nil)
