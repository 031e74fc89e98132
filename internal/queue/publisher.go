package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("queue: publish not confirmed by broker")

const dialTimeout = 2 * time.Second

// Publisher publishes admission messages to RabbitMQ with publisher
// confirms, so a nil error means the broker has taken responsibility for
// the message.  The connection is opened lazily and re-opened after any
// failure.  A reconnect runs in the background and is shared by every
// caller; each caller waits for it only as long as its own context allows,
// so a dead broker never holds an admission past its publish deadline.
type Publisher struct {
	cfg         config.RabbitConfig
	log         *zap.Logger
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing chan struct{} // closed when the running reconnect finishes
	dialErr error         // outcome of the last reconnect
	closed  bool
}

// NewPublisher returns a Publisher.  No connection is made until the first
// Publish call.
func NewPublisher(cfg config.RabbitConfig, log *zap.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: log.Named("publisher"), dialTimeout: dialTimeout}
}

// Publish sends msg to the partition queue of its product and waits for the
// broker confirm or for ctx to end, whichever comes first.
func (p *Publisher) Publish(ctx context.Context, msg EntryMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	key := partitionName(p.cfg.QueuePrefix, Partition(msg.ResourceID, p.cfg.Partitions))
	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		p.cfg.Exchange, // exchange
		key,            // routing key = partition queue name
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.UnixMilli(msg.Timestamp).UTC(),
			MessageId:    msg.Token,
			Body:         body,
		},
	)
	if err != nil {
		p.reset(ch)
		return fmt.Errorf("publish: %w", err)
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}

// channel returns the open channel, starting a reconnect when there is
// none.  The mutex is only held for bookkeeping, never across network I/O.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, amqp.ErrClosed
	}
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing == nil {
		_ = p.closeLocked()
		p.dialing = make(chan struct{})
		go p.connect(p.dialing)
	}
	done := p.dialing
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		if p.dialErr != nil {
			return nil, p.dialErr
		}
		return nil, amqp.ErrClosed
	}
	return p.ch, nil
}

// connect dials, opens a confirm-mode channel and declares the topology.
// The TCP dial and the AMQP handshake are bounded by dialTimeout.
func (p *Publisher) connect(done chan struct{}) {
	conn, ch, err := p.open()

	p.mu.Lock()
	if p.closed && conn != nil {
		_ = conn.Close()
		conn, ch, err = nil, nil, amqp.ErrClosed
	}
	p.conn, p.ch, p.dialErr = conn, ch, err
	p.dialing = nil
	p.mu.Unlock()
	close(done)

	if err != nil {
		p.log.Warn("broker connect failed", zap.Error(err))
		return
	}
	p.log.Info("connected to broker", zap.String("exchange", p.cfg.Exchange), zap.Int("partitions", p.cfg.Partitions))
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{Dial: dialWithin(p.dialTimeout)})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareTopology(ch, p.cfg); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("confirm mode: %w", err)
	}
	return conn, ch, nil
}

// dialWithin opens the TCP connection under a context deadline and leaves
// a socket deadline in place for the AMQP handshake; the client clears it
// once the connection is established.
func dialWithin(timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// reset drops the connection after a failed publish on ch.  A connection
// opened since by another caller is left alone.
func (p *Publisher) reset(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		_ = p.closeLocked()
	}
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	if errors.Is(err, amqp.ErrClosed) {
		err = nil
	}
	return err
}
