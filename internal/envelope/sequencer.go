package envelope

import (
	"sync"
	"time"
)

// Sequencer stamps envelopes for one producer. Sequences start at 1 and
// strictly increase; timestamps never go backwards.
type Sequencer struct {
	producerID string
	now        func() time.Time

	mu   sync.Mutex
	seq  uint64
	last float64
}

func NewSequencer(producerID string) *Sequencer {
	return &Sequencer{producerID: producerID, now: time.Now}
}

func (s *Sequencer) ProducerID() string {
	return s.producerID
}

func (s *Sequencer) Seal(topic string, payload []byte) Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ts := float64(s.now().UnixNano()) / 1e9
	if ts < s.last {
		ts = s.last
	}
	s.last = ts
	return Envelope{
		Topic:      topic,
		ProducerID: s.producerID,
		Sequence:   s.seq,
		Timestamp:  ts,
		Payload:    payload,
	}
}
