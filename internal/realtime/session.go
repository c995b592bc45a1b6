package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
)

// State of the session's connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config controls the session's endpoint and reconnect behavior.
type Config struct {
	URL                string
	BackoffFloor       time.Duration
	BackoffCeiling     time.Duration
	StabilityThreshold time.Duration
	HandshakeTimeout   time.Duration
}

// DefaultConfig reads the reconnect tuning from the environment.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		BackoffFloor:       env.GetEnvDurationOrDefault("REALTIME_BACKOFF_FLOOR", time.Second),
		BackoffCeiling:     env.GetEnvDurationOrDefault("REALTIME_BACKOFF_CEILING", 30*time.Second),
		StabilityThreshold: env.GetEnvDurationOrDefault("REALTIME_STABILITY_THRESHOLD", 5*time.Second),
		HandshakeTimeout:   env.GetEnvDurationOrDefault("REALTIME_HANDSHAKE_TIMEOUT", 10*time.Second),
	}
}

type subscriber struct {
	id      int
	handler Handler
}

// Session owns one live WebSocket connection to the automation server's
// push endpoint and fans parsed events out to subscribers. It reconnects
// with exponential backoff until Disconnect is called; connectivity
// failures are never surfaced as errors.
type Session struct {
	cfg    Config
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	gen         int
	delay       time.Duration
	retryTimer  *time.Timer
	openedAt    time.Time
	subscribers []subscriber
	nextSubID   int
}

func NewSession(cfg Config) *Session {
	if cfg.BackoffFloor <= 0 {
		cfg.BackoffFloor = time.Second
	}
	if cfg.BackoffCeiling < cfg.BackoffFloor {
		cfg.BackoffCeiling = 30 * time.Second
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = 5 * time.Second
	}
	return &Session{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		state: StateIdle,
		delay: cfg.BackoffFloor,
	}
}

// Connect starts the session. No-op while a connection attempt is in
// flight or a connection is open.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting || s.state == StateOpen {
		return
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.state = StateConnecting
	go s.dial(s.gen)
}

// Disconnect stops the session for good: the pending retry is cancelled,
// the socket is closed, and the deliberate close never schedules a
// reconnect. Safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Bumping the generation detaches the read loop's close path.
	s.gen++
	s.state = StateIdle
	s.delay = s.cfg.BackoffFloor
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Connected reports whether the connection is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// OnEvent registers a subscriber and returns its unsubscribe function.
// After unsubscribe returns, the handler receives no further events.
func (s *Session) OnEvent(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, handler: h})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) dial(gen int) {
	conn, resp, err := s.dialer.Dial(s.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	if gen != s.gen {
		// Disconnect ran while we were dialing.
		s.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		log.RT("dial").WithError(err).Warn("Connection failed")
		// The retry timer only redials from Closed; a failed dial has to
		// land there too or the session stalls in Connecting.
		s.state = StateClosed
		s.scheduleRetryLocked(false)
		s.mu.Unlock()
		return
	}

	s.conn = conn
	s.state = StateOpen
	s.openedAt = time.Now()
	s.mu.Unlock()

	log.RT("open").Info("Connected to realtime endpoint")
	go s.readLoop(conn, gen)
}

func (s *Session) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.onClosed(gen, err)
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil || evt.Type == "" {
			// Malformed payloads are dropped; the connection stays up.
			log.RT("parse").Warn("Dropping unparsable realtime message")
			continue
		}
		s.dispatch(evt)
	}
}

func (s *Session) dispatch(evt Event) {
	s.mu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		deliver(sub.handler, evt)
	}
}

// deliver isolates each handler so one panicking subscriber cannot starve
// the rest.
func deliver(h Handler, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.RT("dispatch").Warnf("Subscriber panicked on %s event: %v", evt.Type, rec)
		}
	}()
	h(evt)
}

func (s *Session) onClosed(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	stable := !s.openedAt.IsZero() && time.Since(s.openedAt) >= s.cfg.StabilityThreshold
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = StateClosed
	log.RT("close").WithError(err).Warn("Connection lost; reconnecting")
	s.scheduleRetryLocked(stable)
}

// scheduleRetryLocked picks the next backoff delay and arms the retry
// timer. A connection that stayed open past the stability threshold resets
// the delay to the floor; consecutive rapid failures double it up to the
// ceiling.
func (s *Session) scheduleRetryLocked(wasStable bool) {
	if s.retryTimer != nil {
		return
	}

	if wasStable {
		s.delay = s.cfg.BackoffFloor
	}
	wait := s.delay
	s.delay = minDuration(s.delay*2, s.cfg.BackoffCeiling)
	s.openedAt = time.Time{}

	gen := s.gen
	s.retryTimer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.retryTimer = nil
		if gen != s.gen || s.state != StateClosed {
			return
		}
		s.state = StateConnecting
		go s.dial(s.gen)
	})
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
