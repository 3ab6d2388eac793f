package ingest

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/airguard-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/airguard-core/internal/telemetry"
)

// State is the subscriber's view of the broker connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSubscribed   State = "subscribed"
)

var allStates = []State{StateDisconnected, StateConnecting, StateConnected, StateSubscribed}

const (
	defaultQueueSize       = 256
	defaultDispatchTimeout = 10 * time.Second
)

// Transport is the broker client the subscriber drives. Implemented by
// *mqtt.Client.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
}

// Store persists normalised messages. Implemented by *Dispatcher.
type Store interface {
	Dispatch(ctx context.Context, msg telemetry.GatewayMessage) (Result, error)
}

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	Transport  Transport
	Topics     []string
	QoS        byte
	Normalizer *telemetry.Normalizer
	Store      Store
	Logger     Logger
	Metrics    *Metrics

	// QueueSize bounds the hand-off between the broker callback and the
	// worker. When full the callback blocks.
	QueueSize int

	// DispatchTimeout bounds one message transaction. Shutdown does not
	// cancel a transaction in flight; this timeout does.
	DispatchTimeout time.Duration

	// Now returns the receive time. Defaults to time.Now.
	Now func() time.Time
}

type inbound struct {
	id         string
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Subscriber consumes telemetry from the broker and feeds it through
// decode, normalise and dispatch on a single worker goroutine, so messages
// are stored in the order the broker delivered them.
//
// On every (re)connect it subscribes all configured topics again. A message
// that fails any stage is logged with its outcome and dropped; the worker
// keeps running.
type Subscriber struct {
	transport       Transport
	topics          []string
	qos             byte
	normalizer      *telemetry.Normalizer
	store           Store
	logger          Logger
	metrics         *Metrics
	dispatchTimeout time.Duration
	now             func() time.Time

	queue chan inbound

	stateMu sync.RWMutex
	state   State

	// subMu serialises subscribe rounds from Start and the connect callback.
	subMu sync.Mutex

	// intakeMu guards intakeClosed against concurrent handle calls.
	intakeMu     sync.RWMutex
	intakeClosed bool

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	baseCtx     context.Context

	stopping chan struct{} // closed first by Stop; unblocks waiting senders
	drain    chan struct{} // closed once no sender can enqueue
	done     chan struct{} // closed when the worker exits
}

// NewSubscriber validates opts and returns a Subscriber in the
// disconnected state.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	switch {
	case opts.Transport == nil:
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidOptions)
	case opts.Normalizer == nil:
		return nil, fmt.Errorf("%w: normalizer is required", ErrInvalidOptions)
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: store is required", ErrInvalidOptions)
	case len(opts.Topics) == 0:
		return nil, fmt.Errorf("%w: at least one topic is required", ErrInvalidOptions)
	case opts.QoS > 2:
		return nil, fmt.Errorf("%w: qos must be 0, 1 or 2", ErrInvalidOptions)
	}
	for _, topic := range opts.Topics {
		if err := mqtt.ValidateFilter(topic); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Subscriber{
		transport:       opts.Transport,
		topics:          append([]string(nil), opts.Topics...),
		qos:             opts.QoS,
		normalizer:      opts.Normalizer,
		store:           opts.Store,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		dispatchTimeout: timeout,
		now:             now,
		queue:           make(chan inbound, queueSize),
		state:           StateDisconnected,
		stopping:        make(chan struct{}),
		drain:           make(chan struct{}),
		done:            make(chan struct{}),
	}
	s.metrics.setState(StateDisconnected)
	return s, nil
}

// Start registers the connection callbacks, starts the worker and, if the
// transport is already connected, subscribes immediately. ctx supplies
// values for dispatch contexts only; call Stop to shut down.
func (s *Subscriber) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	switch {
	case s.stopped:
		s.lifecycleMu.Unlock()
		return ErrStopped
	case s.started:
		s.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.baseCtx = ctx
	s.lifecycleMu.Unlock()

	s.transport.SetOnConnect(s.handleConnect)
	s.transport.SetOnDisconnect(s.handleDisconnect)
	s.transport.SetOnReconnecting(s.handleReconnecting)

	go s.run()

	if s.transport.IsConnected() {
		s.handleConnect()
	} else {
		s.setState(StateConnecting)
	}

	return nil
}

// Stop stops intake, waits for the worker to finish the message in flight
// and those already queued, then returns. The transport is left open; close
// it afterwards. Safe to call more than once.
func (s *Subscriber) Stop() {
	s.lifecycleMu.Lock()
	if s.stopped {
		s.lifecycleMu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.lifecycleMu.Unlock()

	s.transport.SetOnConnect(nil)
	s.transport.SetOnDisconnect(nil)
	s.transport.SetOnReconnecting(nil)

	close(s.stopping)

	s.intakeMu.Lock()
	s.intakeClosed = true
	s.intakeMu.Unlock()

	close(s.drain)

	if started {
		<-s.done
	}
	s.setState(StateDisconnected)
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// QueueDepth returns the number of messages waiting for the worker.
func (s *Subscriber) QueueDepth() int {
	return len(s.queue)
}

func (s *Subscriber) setState(state State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = state
	s.stateMu.Unlock()

	s.metrics.setState(state)
	if prev != state && s.logger != nil {
		s.logger.Info("subscriber state changed", "from", string(prev), "to", string(state))
	}
}

func (s *Subscriber) isStopped() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.stopped
}

// handleConnect subscribes every configured topic. A failed subscription
// leaves the state at connected; the next reconnect tries again.
func (s *Subscriber) handleConnect() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.isStopped() {
		return
	}
	s.setState(StateConnected)

	for _, topic := range s.topics {
		if err := s.transport.Subscribe(topic, s.qos, s.handle); err != nil {
			if s.logger != nil {
				s.logger.Error("subscribe failed", "topic", topic, "error", err)
			}
			return
		}
		if s.logger != nil {
			s.logger.Debug("subscribed", "topic", topic, "qos", s.qos)
		}
	}

	s.setState(StateSubscribed)
}

func (s *Subscriber) handleDisconnect(err error) {
	if s.isStopped() {
		return
	}
	if s.logger != nil {
		s.logger.Warn("broker connection lost", "error", err)
	}
	s.setState(StateDisconnected)
}

func (s *Subscriber) handleReconnecting() {
	if s.isStopped() {
		return
	}
	s.setState(StateConnecting)
}

// handle is the broker callback. It copies the payload and blocks until
// the worker has room, so the broker sees backpressure instead of loss.
func (s *Subscriber) handle(topic string, payload []byte) error {
	s.metrics.recordReceived(topic)

	s.intakeMu.RLock()
	defer s.intakeMu.RUnlock()
	if s.intakeClosed {
		return ErrStopped
	}

	msg := inbound{
		id:         uuid.NewString(),
		topic:      topic,
		payload:    bytes.Clone(payload),
		receivedAt: s.now(),
	}

	select {
	case s.queue <- msg:
		s.metrics.setQueueDepth(len(s.queue))
		return nil
	case <-s.stopping:
		return ErrStopped
	}
}

// run is the single worker loop.
func (s *Subscriber) run() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.queue:
			s.process(msg)
		case <-s.drain:
			for {
				select {
				case msg := <-s.queue:
					s.process(msg)
				default:
					return
				}
			}
		}
	}
}

// process runs one message through the pipeline. It never panics.
func (s *Subscriber) process(in inbound) {
	start := time.Now()
	outcome := OutcomeUnknownError

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			if s.logger != nil {
				s.logger.Error("message processing panic recovered",
					"message_id", in.id,
					"topic", in.topic,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}
		s.metrics.recordProcessed(outcome, time.Since(start))
	}()

	s.metrics.setQueueDepth(len(s.queue))

	msg, res, err := s.pipeline(in)
	outcome = Classify(err)
	s.logOutcome(in, msg, res, outcome, err)
}

func (s *Subscriber) pipeline(in inbound) (telemetry.GatewayMessage, Result, error) {
	raw, err := telemetry.Decode(in.payload, in.topic)
	if err != nil {
		return telemetry.GatewayMessage{}, Result{}, err
	}

	msg, err := s.normalizer.Normalize(raw, in.receivedAt)
	if err != nil {
		return telemetry.GatewayMessage{}, Result{}, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseContext()), s.dispatchTimeout)
	defer cancel()

	res, err := s.store.Dispatch(ctx, msg)
	return msg, res, err
}

func (s *Subscriber) baseContext() context.Context {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func (s *Subscriber) logOutcome(in inbound, msg telemetry.GatewayMessage, res Result, outcome Outcome, err error) {
	if s.logger == nil {
		return
	}

	attrs := []any{
		"message_id", in.id,
		"topic", in.topic,
		"outcome", string(outcome),
	}
	if msg.GatewayID != "" {
		attrs = append(attrs, "gateway_id", msg.GatewayID)
	}

	switch outcome {
	case OutcomeStored:
		if msg.Timestamp.Kind == telemetry.TimestampFallback {
			s.logger.Warn("unusable timestamp, stored with receive time",
				append(attrs, "timestamp_raw", msg.Timestamp.Raw)...)
		}
		attrs = append(attrs,
			"reading_id", res.ReadingID,
			"control_state_id", res.ControlStateID,
			"timestamp_kind", string(msg.Timestamp.Kind),
		)
		if msg.Timestamp.Approximate() {
			attrs = append(attrs, "approximate", true)
		}
		s.logger.Debug("message stored", attrs...)
	case OutcomeDecodeError:
		s.logger.Error("message dropped",
			append(attrs, "error", err, "payload_bytes", len(in.payload))...)
	case OutcomeStorageError:
		s.logger.Error("message dropped", append(attrs, "error", err)...)
	default:
		s.logger.Warn("message dropped",
			append(attrs, "error", err, "payload_bytes", len(in.payload))...)
	}
}
