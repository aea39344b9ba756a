package testutil

import (
	"encoding/json"
	"sync"

	"github.com/mcoot/geoseek/internal/model"
)

// Recorder is a subscriber that keeps every message it receives.
// Capacity limits how many messages it accepts; zero means unlimited.
type Recorder struct {
	id       string
	capacity int

	mu       sync.Mutex
	messages [][]byte
}

// NewRecorder creates a Recorder with unlimited capacity
func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

// NewFullRecorder creates a Recorder that accepts at most capacity messages
func NewFullRecorder(id string, capacity int) *Recorder {
	return &Recorder{id: id, capacity: capacity}
}

func (r *Recorder) ID() string {
	return r.id
}

func (r *Recorder) Deliver(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capacity > 0 && len(r.messages) >= r.capacity {
		return false
	}
	r.messages = append(r.messages, msg)
	return true
}

// Envelopes decodes every received message
func (r *Recorder) Envelopes() []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Envelope, 0, len(r.messages))
	for _, m := range r.messages {
		var env model.Envelope
		if err := json.Unmarshal(m, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Types returns the event type of every received message, in order
func (r *Recorder) Types() []model.EventType {
	envs := r.Envelopes()
	out := make([]model.EventType, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}

// Count returns how many received messages have the given type
func (r *Recorder) Count(event model.EventType) int {
	n := 0
	for _, t := range r.Types() {
		if t == event {
			n++
		}
	}
	return n
}

// Last decodes the payload of the most recent message of the given type into v
// and reports whether one was found
func (r *Recorder) Last(event model.EventType, v any) bool {
	envs := r.Envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == event {
			return json.Unmarshal(envs[i].Payload, v) == nil
		}
	}
	return false
}

// Reset forgets all received messages
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
