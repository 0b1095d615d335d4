package entity

import (
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// TopicPrefix is where entity states are published by the host state
// registry, one retained message per entity: <prefix>/<entity_id>.
const TopicPrefix = "clockwork/state"

// MQTTObserver observes entity states over an MQTT broker. The host registry
// publishes each entity's state as a retained message, so a fresh
// subscription immediately yields the current state.
type MQTTObserver struct {
	client paho.Client

	mu      sync.Mutex
	states  map[string]Snapshot
	watched map[string]bool
	closed  bool

	ch chan Change
}

// NewMQTTObserver connects to the broker and returns an observer.
func NewMQTTObserver(broker, clientID string) (*MQTTObserver, error) {
	o := &MQTTObserver{
		states:  make(map[string]Snapshot),
		watched: make(map[string]bool),
		ch:      make(chan Change, 256),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(o.resubscribe)

	o.client = paho.NewClient(opts)
	token := o.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("observer connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("observer connect: %w", err)
	}
	return o, nil
}

// Watch subscribes to the entity's state topic.
func (o *MQTTObserver) Watch(entityID string) error {
	o.mu.Lock()
	already := o.watched[entityID]
	o.watched[entityID] = true
	o.mu.Unlock()
	if already {
		return nil
	}
	return o.subscribe(entityID)
}

// Unwatch unsubscribes from the entity's state topic. The last seen snapshot
// is kept so Current still answers.
func (o *MQTTObserver) Unwatch(entityID string) error {
	o.mu.Lock()
	delete(o.watched, entityID)
	o.mu.Unlock()

	token := o.client.Unsubscribe(stateTopic(entityID))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("unsubscribe timeout for %s", entityID)
	}
	return token.Error()
}

// Changes returns the merged transition stream.
func (o *MQTTObserver) Changes() <-chan Change {
	return o.ch
}

// Current returns the latest seen snapshot for the entity.
func (o *MQTTObserver) Current(entityID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap, ok := o.states[entityID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, entityID)
	}
	return snap, nil
}

// Close disconnects and closes the change stream.
func (o *MQTTObserver) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.ch)
	o.mu.Unlock()

	o.client.Disconnect(1000)
	return nil
}

func (o *MQTTObserver) subscribe(entityID string) error {
	token := o.client.Subscribe(stateTopic(entityID), 1, o.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for %s", entityID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", entityID, err)
	}
	return nil
}

// resubscribe restores subscriptions after a broker reconnect.
func (o *MQTTObserver) resubscribe(paho.Client) {
	o.mu.Lock()
	ids := make([]string, 0, len(o.watched))
	for id := range o.watched {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		_ = o.subscribe(id)
	}
}

func (o *MQTTObserver) onMessage(_ paho.Client, msg paho.Message) {
	entityID := strings.TrimPrefix(msg.Topic(), TopicPrefix+"/")
	state := string(msg.Payload())
	now := time.Now()

	o.mu.Lock()
	old, seen := o.states[entityID]
	changed := !seen || old.State != state
	if changed {
		o.states[entityID] = Snapshot{State: state, LastChanged: now}
	}
	// The first (retained) message establishes the snapshot without
	// emitting a transition. The send stays under the mutex: Close sets
	// closed and closes the stream under the same lock, so a handler can
	// never send on a closed channel.
	if changed && seen && o.watched[entityID] && !o.closed {
		select {
		case o.ch <- Change{EntityID: entityID, Old: old.State, New: state, At: now}:
		default:
			// A full stream drops the change; the next recompute reads
			// the snapshot instead.
		}
	}
	o.mu.Unlock()
}

func stateTopic(entityID string) string {
	return TopicPrefix + "/" + entityID
}
