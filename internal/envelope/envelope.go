// Package envelope defines the message wrapper carried on the bus and its wire format.
//
// Wire layout, all integers big-endian:
//
//	[topic_len uint32][topic][producer_len uint32][producer][sequence uint64]
//	[timestamp float64 bits][payload_len uint32][payload]
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrCorrupt  = errors.New("envelope: corrupt message")
	ErrTooLarge = errors.New("envelope: field exceeds MaxPayload")
)

// MaxPayload bounds every length-prefixed field, on encode and on decode.
const MaxPayload = 64 << 20

const (
	lenSize   = 4
	fixedSize = 8 + 8
)

// Envelope is immutable once built. Handlers must not modify Payload.
type Envelope struct {
	Topic      string
	ProducerID string
	Sequence   uint64
	Timestamp  float64
	Payload    []byte
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s %s#%d (%d bytes)", e.Topic, e.ProducerID, e.Sequence, len(e.Payload))
}

// CheckSize reports an ErrTooLarge error when a field of e cannot be encoded.
func CheckSize(e Envelope) error {
	for _, f := range []struct {
		name string
		n    int
	}{{"topic", len(e.Topic)}, {"producer_id", len(e.ProducerID)}, {"payload", len(e.Payload)}} {
		if f.n > MaxPayload {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, f.name, f.n, MaxPayload)
		}
	}
	return nil
}

// Encode serializes e. Fields longer than MaxPayload are rejected, so every
// encoded envelope decodes again.
func Encode(e Envelope) ([]byte, error) {
	if err := CheckSize(e); err != nil {
		return nil, err
	}
	size := lenSize + len(e.Topic) + lenSize + len(e.ProducerID) + fixedSize + lenSize + len(e.Payload)
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Topic)))
	out = append(out, e.Topic...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.ProducerID)))
	out = append(out, e.ProducerID...)
	out = binary.BigEndian.AppendUint64(out, e.Sequence)
	out = binary.BigEndian.AppendUint64(out, math.Float64bits(e.Timestamp))
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Payload)))
	out = append(out, e.Payload...)
	return out, nil
}

// Decode parses data produced by Encode. Every failure wraps ErrCorrupt.
// The returned payload does not alias data.
func Decode(data []byte) (Envelope, error) {
	r := reader{buf: data}
	topic, err := r.chunk("topic")
	if err != nil {
		return Envelope{}, err
	}
	producer, err := r.chunk("producer_id")
	if err != nil {
		return Envelope{}, err
	}
	seq, err := r.uint64("sequence")
	if err != nil {
		return Envelope{}, err
	}
	tsBits, err := r.uint64("timestamp")
	if err != nil {
		return Envelope{}, err
	}
	payload, err := r.chunk("payload")
	if err != nil {
		return Envelope{}, err
	}
	if len(r.buf) != 0 {
		return Envelope{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(r.buf))
	}

	e := Envelope{
		Topic:      string(topic),
		ProducerID: string(producer),
		Sequence:   seq,
		Timestamp:  math.Float64frombits(tsBits),
	}
	if len(payload) > 0 {
		e.Payload = append([]byte(nil), payload...)
	}
	return e, nil
}

type reader struct {
	buf []byte
}

func (r *reader) chunk(field string) ([]byte, error) {
	if len(r.buf) < lenSize {
		return nil, fmt.Errorf("%w: short %s length", ErrCorrupt, field)
	}
	n := binary.BigEndian.Uint32(r.buf)
	r.buf = r.buf[lenSize:]
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: %s length %d exceeds limit %d", ErrCorrupt, field, n, MaxPayload)
	}
	if uint64(n) > uint64(len(r.buf)) {
		return nil, fmt.Errorf("%w: %s length %d exceeds remaining %d bytes", ErrCorrupt, field, n, len(r.buf))
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if len(r.buf) < 8 {
		return 0, fmt.Errorf("%w: short %s", ErrCorrupt, field)
	}
	v := binary.BigEndian.Uint64(r.buf)
	r.buf = r.buf[8:]
	return v, nil
}
