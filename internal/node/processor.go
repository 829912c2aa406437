package node

import (
	"context"
	"fmt"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/envelope"
	"brickbus-go/internal/payload"
	"brickbus-go/internal/topic"
	"brickbus-go/internal/types"
)

type ProcessorConfig struct {
	ID     string
	Input  string
	Output string
	Codec  payload.Codec
}

// Processor subscribes to one input topic and publishes one result per frame.
// A failure on one message is logged and does not end the subscription.
type Processor struct {
	*Node
	cfg  ProcessorConfig
	sub  bus.Subscriber
	algo Algorithm
}

// NewProcessor wires a processing stage. t must be able to both publish and subscribe.
func NewProcessor(cfg ProcessorConfig, t interface {
	bus.Publisher
	bus.Subscriber
}, algo Algorithm) (*Processor, error) {
	if cfg.Input == "" {
		cfg.Input = topic.ImageRGB
	}
	if cfg.Output == "" {
		cfg.Output = topic.RecognitionResult
	}
	for _, name := range []string{cfg.Input, cfg.Output} {
		if err := topic.Validate(name); err != nil {
			return nil, err
		}
	}
	if cfg.Codec == nil || algo == nil || t == nil {
		return nil, fmt.Errorf("processor: codec, transport and algorithm are required")
	}
	p := &Processor{cfg: cfg, sub: t, algo: algo}
	p.Node = newNode("processor-"+algo.Name(), cfg.ID, t, p.loop)
	return p, nil
}

func (p *Processor) loop(ctx context.Context) error {
	sub, err := p.sub.Subscribe(p.cfg.Input, p.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", p.cfg.Input, err)
	}
	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	_ = p.sub.Unsubscribe(sub)
	return nil
}

func (p *Processor) handle(env envelope.Envelope) {
	result, err := p.process(env)
	if err != nil {
		perr := &ProcessingError{Topic: env.Topic, Sequence: env.Sequence, Err: err}
		p.logf(topic.Error, "%s: %v", p.algo.Name(), perr)
		return
	}

	body, err := p.cfg.Codec.Marshal(result)
	if err != nil {
		p.logf(topic.Error, "%s: encode result for %s#%d: %v", p.algo.Name(), env.ProducerID, env.Sequence, err)
		return
	}
	if err := p.publish(p.cfg.Output, body); err != nil {
		p.logf(topic.Error, "%s: publish result: %v", p.algo.Name(), err)
		return
	}
	p.logf(topic.Info, "%s processed %s#%d: %s (%.3f)", p.algo.Name(), env.ProducerID, env.Sequence, result.Label, result.Score)
}

func (p *Processor) process(env envelope.Envelope) (result types.Result, err error) {
	var frame types.Frame
	if err := p.cfg.Codec.Unmarshal(env.Payload, &frame); err != nil {
		return types.Result{}, fmt.Errorf("decode frame: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			result = types.Result{}
			err = &PanicError{Value: r}
		}
	}()
	result, err = p.algo.Process(frame)
	if err != nil {
		return types.Result{}, err
	}
	result.Processor = p.algo.Name()
	result.SourceProducer = env.ProducerID
	result.SourceSequence = env.Sequence
	result.SourceTimestamp = env.Timestamp
	result.FrameIndex = frame.Index
	return result, nil
}
