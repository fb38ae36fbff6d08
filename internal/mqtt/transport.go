// Package mqtt carries ZCL and ZDO frames to and from a radio bridge over
// MQTT and publishes attribute state for other consumers.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"zcl-gateway/internal/transport"
)

// ErrNotConnected is returned when a frame is sent before the broker connection is up.
var ErrNotConnected = errors.New("mqtt not connected")

const (
	DefaultTopicPrefix    = "zcl"
	DefaultRequestTimeout = 10 * time.Second

	inboundQueue = 256
)

// Config holds MQTT connection and framing settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	Format         string
	RequestTimeout time.Duration
}

// Directory resolves node indexes for the transport.
type Directory interface {
	Node(index int) (transport.Node, error)
}

// Handler receives every inbound command.
type Handler func(ctx context.Context, cmd transport.Command)

type pendingRequest struct {
	req     transport.Command
	matcher transport.ResponseMatcher
	future  *transport.Future
	timer   *time.Timer
	stopCtx func() bool
}

// Transport implements transport.Transport over MQTT. Requests are published
// to <prefix>/tx; responses and unsolicited commands arrive on <prefix>/rx.
type Transport struct {
	client  pahomqtt.Client
	publish func(topic string, payload []byte) error
	codec   Codec
	prefix  string
	timeout time.Duration
	dir     Directory
	logger  *slog.Logger

	tsn     atomic.Uint32
	mu      sync.Mutex
	pending map[uint8]*pendingRequest

	handlerMu sync.RWMutex
	handler   Handler

	inbound chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

func newTransport(cfg Config, dir Directory, logger *slog.Logger) (*Transport, error) {
	codec, err := NewCodec(cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		codec:   codec,
		prefix:  cfg.TopicPrefix,
		timeout: cfg.RequestTimeout,
		dir:     dir,
		logger:  logger.With("component", "mqtt"),
		pending: make(map[uint8]*pendingRequest),
		inbound: make(chan []byte, inboundQueue),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// NewTransport creates the transport and connects to the broker.
func NewTransport(cfg Config, dir Directory, logger *slog.Logger) (*Transport, error) {
	t, err := newTransport(cfg, dir, logger)
	if err != nil {
		return nil, err
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zcl-gateway"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(t.prefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			t.logger.Info("MQTT connected", "format", t.codec.Name())
			t.subscribe(c)
			t.publishRetained(t.prefix+"/bridge/state", []byte("online"))
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			t.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	t.client = client
	t.publish = func(topic string, payload []byte) error {
		if !client.IsConnectionOpen() {
			return ErrNotConnected
		}
		tok := client.Publish(topic, 1, false, payload)
		if !tok.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return tok.Error()
	}
	return t, nil
}

func (t *Transport) subscribe(c pahomqtt.Client) {
	topic := t.prefix + "/rx"
	tok := c.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.enqueue(msg.Payload())
	})
	go func() {
		if !tok.WaitTimeout(5 * time.Second) {
			t.logger.Warn("MQTT subscribe timeout", "topic", topic)
		} else if err := tok.Error(); err != nil {
			t.logger.Error("MQTT subscribe", "topic", topic, "err", err)
		}
	}()
}

// Client exposes the broker connection for publishers sharing it.
func (t *Transport) Client() pahomqtt.Client { return t.client }

// Prefix returns the topic prefix.
func (t *Transport) Prefix() string { return t.prefix }

// SetHandler installs the receiver for inbound commands.
func (t *Transport) SetHandler(h Handler) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// Start begins delivering inbound frames.
func (t *Transport) Start() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	t.wg.Add(1)
	go t.readLoop()
	t.logger.Info("MQTT transport started", "prefix", t.prefix, "format", t.codec.Name())
}

// Stop fails outstanding requests and disconnects.
func (t *Transport) Stop() {
	t.cancel()
	t.wg.Wait()

	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint8]*pendingRequest)
	t.mu.Unlock()
	for _, p := range pending {
		p.timer.Stop()
		p.stopCtx()
		p.future.Fail(ErrNotConnected)
	}

	if t.client != nil {
		t.publishRetained(t.prefix+"/bridge/state", []byte("offline"))
		t.client.Disconnect(1000)
	}
	t.logger.Info("MQTT transport stopped")
}

func (t *Transport) nextTSN() uint8 {
	return uint8(t.tsn.Add(1))
}

// Unicast publishes cmd and resolves the future with the first response
// matcher accepts. When no response arrives within the request timeout the
// future completes with an empty result.
func (t *Transport) Unicast(ctx context.Context, cmd transport.Command, matcher transport.ResponseMatcher) *transport.Future {
	tsn := t.nextTSN()
	cmd.SetTransactionID(tsn)
	frame, err := encodeFrame(cmd)
	if err != nil {
		return transport.Failed(err)
	}
	frame.ID = uuid.New().String()

	p := &pendingRequest{
		req:     cmd,
		matcher: matcher,
		future:  transport.NewFuture(),
	}

	t.mu.Lock()
	if old, ok := t.pending[tsn]; ok {
		delete(t.pending, tsn)
		old.timer.Stop()
		old.stopCtx()
		old.future.Fail(fmt.Errorf("transaction %d reused", tsn))
	}
	t.pending[tsn] = p
	p.timer = time.AfterFunc(t.timeout, func() {
		if t.remove(tsn, p) {
			t.logger.Debug("request timed out", "tsn", tsn, "cluster", fmt.Sprintf("0x%04X", cmd.ClusterID()))
			p.future.Complete(transport.Result{})
		}
	})
	p.stopCtx = context.AfterFunc(ctx, func() {
		if t.remove(tsn, p) {
			p.future.Fail(ctx.Err())
		}
	})
	t.mu.Unlock()

	if err := t.send(frame); err != nil {
		if t.remove(tsn, p) {
			p.future.Fail(err)
		}
	}
	return p.future
}

// SendCommand publishes cmd without tracking a response.
func (t *Transport) SendCommand(_ context.Context, cmd transport.Command) error {
	cmd.SetTransactionID(t.nextTSN())
	frame, err := encodeFrame(cmd)
	if err != nil {
		return err
	}
	frame.ID = uuid.New().String()
	return t.send(frame)
}

// Node looks index up in the directory.
func (t *Transport) Node(index int) (transport.Node, error) {
	if t.dir == nil {
		return transport.Node{}, transport.ErrNoNode
	}
	return t.dir.Node(index)
}

func (t *Transport) send(frame *Frame) error {
	data, err := t.codec.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if t.publish == nil {
		return ErrNotConnected
	}
	if err := t.publish(t.prefix+"/tx", data); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// remove drops p from the pending table if it is still registered under tsn.
func (t *Transport) remove(tsn uint8, p *pendingRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[tsn] != p {
		return false
	}
	delete(t.pending, tsn)
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.stopCtx != nil {
		p.stopCtx()
	}
	return true
}

func (t *Transport) enqueue(payload []byte) {
	select {
	case t.inbound <- payload:
	default:
		t.logger.Warn("inbound queue full, dropping frame")
	}
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		case payload := <-t.inbound:
			t.handleFrame(payload)
		}
	}
}

// handleFrame resolves a waiting request, if any, and passes the command on
// to the handler.
func (t *Transport) handleFrame(payload []byte) {
	var frame Frame
	if err := t.codec.Unmarshal(payload, &frame); err != nil {
		t.logger.Warn("invalid frame", "err", err)
		return
	}
	cmd, err := decodeFrame(&frame)
	if err != nil {
		t.logger.Warn("undecodable frame", "kind", frame.Kind, "cluster", fmt.Sprintf("0x%04X", frame.Cluster), "err", err)
		return
	}

	if isResponse(cmd) {
		t.resolve(cmd)
	}

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		h(t.ctx, cmd)
	}
}

func (t *Transport) resolve(resp transport.Command) {
	tsn := resp.TransactionID()
	t.mu.Lock()
	p, ok := t.pending[tsn]
	t.mu.Unlock()
	if !ok || !p.matcher.IsMatch(p.req, resp) {
		t.logger.Debug("orphaned response", "tsn", tsn, "cluster", fmt.Sprintf("0x%04X", resp.ClusterID()))
		return
	}
	if t.remove(tsn, p) {
		p.future.Complete(transport.Result{Response: resp})
	}
}

func (t *Transport) publishRetained(topic string, payload []byte) {
	if t.client == nil {
		return
	}
	publishAsync(t.client, t.logger, topic, payload, true)
}
