package types

// Frame is one captured image. Pixels are interleaved, row-major, Channels bytes per pixel.
type Frame struct {
	Camera     string  `json:"camera" cbor:"camera" msgpack:"camera"`
	Index      uint64  `json:"index" cbor:"index" msgpack:"index"`
	Width      int     `json:"width" cbor:"width" msgpack:"width"`
	Height     int     `json:"height" cbor:"height" msgpack:"height"`
	Channels   int     `json:"channels" cbor:"channels" msgpack:"channels"`
	CapturedAt float64 `json:"captured_at" cbor:"captured_at" msgpack:"captured_at"`
	Pixels     []byte  `json:"-" cbor:"pixels" msgpack:"pixels"`
}

// Box is an inclusive pixel bounding box.
type Box struct {
	MinX int `json:"min_x" cbor:"min_x" msgpack:"min_x"`
	MinY int `json:"min_y" cbor:"min_y" msgpack:"min_y"`
	MaxX int `json:"max_x" cbor:"max_x" msgpack:"max_x"`
	MaxY int `json:"max_y" cbor:"max_y" msgpack:"max_y"`
}

// Result is the output of a processing stage for one frame.
type Result struct {
	Processor       string             `json:"processor" cbor:"processor" msgpack:"processor"`
	SourceProducer  string             `json:"source_producer" cbor:"source_producer" msgpack:"source_producer"`
	SourceSequence  uint64             `json:"source_sequence" cbor:"source_sequence" msgpack:"source_sequence"`
	SourceTimestamp float64            `json:"source_timestamp" cbor:"source_timestamp" msgpack:"source_timestamp"`
	FrameIndex      uint64             `json:"frame_index" cbor:"frame_index" msgpack:"frame_index"`
	Label           string             `json:"label" cbor:"label" msgpack:"label"`
	Score           float64            `json:"score" cbor:"score" msgpack:"score"`
	Box             *Box               `json:"box,omitempty" cbor:"box,omitempty" msgpack:"box,omitempty"`
	Metrics         map[string]float64 `json:"metrics,omitempty" cbor:"metrics,omitempty" msgpack:"metrics,omitempty"`
}

// LogRecord is one sink log line as stored in a record file.
type LogRecord struct {
	Severity string `json:"severity" cbor:"severity" msgpack:"severity"`
	Message  string `json:"message" cbor:"message" msgpack:"message"`
}
