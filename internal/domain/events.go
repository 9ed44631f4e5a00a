package domain

import (
	"fmt"
	"time"
)

// SyncState is the state of the upstream connection as seen by a watcher.
type SyncState int

const (
	SyncStateDisconnected SyncState = iota
	SyncStateSyncing
	SyncStateSynced
	SyncStateClosed
)

func (s SyncState) String() string {
	switch s {
	case SyncStateDisconnected:
		return "disconnected"
	case SyncStateSyncing:
		return "syncing"
	case SyncStateSynced:
		return "synced"
	case SyncStateClosed:
		return "closed"
	default:
		return fmt.Sprintf("sync-state(%d)", int(s))
	}
}

// SensorDefinition is an upstream sensor as announced by the device: the fields of a
// katcp #sensor-list inform.
type SensorDefinition struct {
	Name        string
	Description string
	Units       string
	TypeName    string
	Args        [][]byte
}

// EventKind enumerates the upstream lifecycle events.
type EventKind int

const (
	EventBatchStart EventKind = iota
	EventBatchStop
	EventSensorAdded
	EventSensorRemoved
	EventSensorUpdated
	EventStateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventBatchStart:
		return "batch_start"
	case EventBatchStop:
		return "batch_stop"
	case EventSensorAdded:
		return "sensor_added"
	case EventSensorRemoved:
		return "sensor_removed"
	case EventSensorUpdated:
		return "sensor_updated"
	case EventStateChanged:
		return "state_changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one item of the upstream event stream. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind       EventKind
	Definition SensorDefinition
	Name       string
	Value      []byte
	Status     Status
	Timestamp  time.Time
	State      SyncState
}

func BatchStartEvent() Event { return Event{Kind: EventBatchStart} }
func BatchStopEvent() Event  { return Event{Kind: EventBatchStop} }

func SensorAddedEvent(def SensorDefinition) Event {
	return Event{Kind: EventSensorAdded, Definition: def, Name: def.Name}
}

func SensorRemovedEvent(name string) Event {
	return Event{Kind: EventSensorRemoved, Name: name}
}

func SensorUpdatedEvent(name string, value []byte, status Status, timestamp time.Time) Event {
	return Event{Kind: EventSensorUpdated, Name: name, Value: value, Status: status, Timestamp: timestamp}
}

func StateChangedEvent(state SyncState) Event {
	return Event{Kind: EventStateChanged, State: state}
}
