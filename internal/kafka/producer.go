package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer decouples request handlers from the broker: Publish enqueues onto a
// buffered channel and a single loop goroutine does the writing. When the
// queue is full the message is dropped and counted rather than stalling the
// request path.
type Producer struct {
	w     *kafka.Writer
	log   *zap.Logger
	queue chan kafka.Message
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	dropped int
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		log:   log,
		queue: make(chan kafka.Message, buf),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled or Close is called, then
// drains whatever is still queued before closing the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		defer p.w.Close()
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			case m := <-p.queue:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.queue:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka write", zap.String("topic", p.w.Topic), zap.Error(err))
	}
}

// Publish enqueues without blocking. Events are best-effort signals here, so a
// full queue drops the message and the loss shows up in the logs.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	select {
	case <-p.stop:
		return
	default:
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.queue <- m:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		p.log.Warn("kafka queue full, event dropped",
			zap.String("topic", p.w.Topic), zap.Int("dropped_total", n))
	}
}

// Close stops intake. Safe to call more than once.
func (p *Producer) Close() { p.once.Do(func() { close(p.stop) }) }

// WaitClosed blocks until the loop has drained and closed the writer.
func (p *Producer) WaitClosed() { <-p.done }
