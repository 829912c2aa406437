// Package payload serializes frames and results carried inside envelopes.
package payload

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CBOR    = "cbor"
	MsgPack = "msgpack"
)

// Codec turns payload values into bytes and back. Implementations are safe for concurrent use.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

func New(name string) (Codec, error) {
	switch name {
	case "", CBOR:
		return newCBOR()
	case MsgPack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("payload: unknown codec %q", name)
	}
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBOR() (*cborCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &cborCodec{enc: enc, dec: dec}, nil
}

func (c *cborCodec) Name() string { return CBOR }

func (c *cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return MsgPack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
