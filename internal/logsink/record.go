package logsink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"brickbus-go/internal/payload"
	"brickbus-go/internal/topic"
	"brickbus-go/internal/types"
)

const recordMagic = "BRKLOG01"

// MaxRecordSize bounds a single record when reading a file back.
const MaxRecordSize = 1 << 20

var ErrBadRecordFile = errors.New("logsink: not a record file")

// RecordWriter appends log messages to a binary file: the magic, then per record
// a 12 byte little-endian header (unix nanos, payload length) and a CBOR LogRecord.
type RecordWriter struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	codec payload.Codec
	path  string
}

func NewRecordWriter(dir, prefix string) (*RecordWriter, error) {
	codec, err := payload.New(payload.CBOR)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s.bin", time.Now().Format("20060102_150405"), prefix))
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString(recordMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RecordWriter{f: f, w: w, codec: codec, path: name}, nil
}

func (r *RecordWriter) Path() string { return r.path }

func (r *RecordWriter) Log(sev topic.Severity, msg []byte) error {
	body, err := r.codec.Marshal(types.LogRecord{Severity: sev.String(), Message: string(msg)})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("record writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(body)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(body); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RecordWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	r.w = nil
	return errors.Join(err, r.f.Close())
}

// ReadRecords calls fn for each record in a file written by RecordWriter.
// A truncated final record ends the walk without error.
func ReadRecords(rd io.Reader, fn func(at time.Time, rec types.LogRecord) error) error {
	codec, err := payload.New(payload.CBOR)
	if err != nil {
		return err
	}
	magic := make([]byte, len(recordMagic))
	if _, err := io.ReadFull(rd, magic); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRecordFile, err)
	}
	if string(magic) != recordMagic {
		return fmt.Errorf("%w: magic %q", ErrBadRecordFile, magic)
	}

	for {
		var header [12]byte
		if _, err := io.ReadFull(rd, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		at := time.Unix(0, int64(binary.LittleEndian.Uint64(header[:8])))
		size := binary.LittleEndian.Uint32(header[8:12])
		if size > MaxRecordSize {
			return fmt.Errorf("%w: record of %d bytes", ErrBadRecordFile, size)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(rd, body); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var rec types.LogRecord
		if err := codec.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(at, rec); err != nil {
			return err
		}
	}
}
