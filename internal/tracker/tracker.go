// Package tracker correlates telephony call identifiers with internal
// session identifiers and accumulates a transcript per session. It is the
// only shared mutable state in the process: one Tracker is constructed at
// startup and handed to every component that needs it. State lives in
// process memory and is lost on restart by design.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
)

type session struct {
	transcript domain.Transcript
	lastActive time.Time
}

// Tracker maps call ids to session ids and session ids to transcripts.
// All methods are safe for concurrent use; mutations to one session are
// serialized under the tracker lock, so concurrent appends never lose turns
// and an append racing EndSession either lands before it or is dropped.
type Tracker struct {
	mu         sync.Mutex
	sessions   map[string]*session
	callToSess map[string]string

	logger *slog.Logger
	ttl    time.Duration
	done   chan struct{}
	once   sync.Once
	now    func() time.Time
}

// Option configures the tracker.
type Option func(*Tracker)

// WithTTL enables idle-session expiry: a session with no activity for ttl is
// removed by the janitor, along with its call mappings. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates an empty tracker. If a TTL is set, a janitor goroutine runs
// until Close is called.
func New(logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		sessions:   make(map[string]*session),
		callToSess: make(map[string]string),
		logger:     logger,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.ttl > 0 {
		go t.janitor()
	}
	return t
}

// Close stops the janitor. Safe to call more than once.
func (t *Tracker) Close() {
	t.once.Do(func() { close(t.done) })
}

// StartSession registers sessionID as active with an empty transcript.
// Calling it again for the same id resets the transcript.
func (t *Tracker) StartSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[sessionID] = &session{lastActive: t.now()}
	t.logger.Debug("session started", slog.String("session_id", sessionID))
}

// MapCallToSession records the callID -> sessionID association, overwriting
// any prior mapping for callID. The session id is not validated.
func (t *Tracker) MapCallToSession(callID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callToSess[callID] = sessionID
	t.logger.Debug("call mapped to session",
		slog.String("call_id", callID),
		slog.String("session_id", sessionID),
	)
}

// IsCallTracked reports whether a mapping exists for callID, regardless of
// whether the mapped session is still active.
func (t *Tracker) IsCallTracked(callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.callToSess[callID]
	return ok
}

// AppendTurnForSession appends a turn to an active session's transcript.
// Turns for unknown or ended sessions are silently dropped.
func (t *Tracker) AppendTurnForSession(sessionID string, turn domain.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.appendLocked(sessionID, turn)
}

// AppendTurnForCall resolves callID through the mapping and appends to the
// mapped session. A turn for an unmapped call is dropped and logged, never
// raised: the telephony webhook must acknowledge quickly no matter what
// state our bookkeeping is in.
func (t *Tracker) AppendTurnForCall(callID string, turn domain.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessionID, ok := t.callToSess[callID]
	if !ok {
		t.logger.Warn("turn dropped: no session mapping for call", slog.String("call_id", callID))
		return
	}
	t.appendLocked(sessionID, turn)
}

func (t *Tracker) appendLocked(sessionID string, turn domain.Turn) {
	s, ok := t.sessions[sessionID]
	if !ok {
		t.logger.Warn("turn dropped: session not active", slog.String("session_id", sessionID))
		return
	}
	s.transcript = append(s.transcript, turn)
	s.lastActive = t.now()
	t.logger.Debug("turn appended",
		slog.String("session_id", sessionID),
		slog.String("speaker", string(turn.Speaker)),
		slog.Int("turns", len(s.transcript)),
	)
}

// Transcript returns a snapshot of the session's transcript; empty if the
// session is unknown. Never fails.
func (t *Tracker) Transcript(sessionID string) domain.Transcript {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return domain.Transcript{}
	}
	return s.transcript.Clone()
}

// EndSession deactivates the session, removes every call mapping pointing at
// it, and returns the final transcript snapshot. Ending an unknown or
// already-ended session returns an empty transcript.
func (t *Tracker) EndSession(sessionID string) domain.Transcript {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.endLocked(sessionID)
}

func (t *Tracker) endLocked(sessionID string) domain.Transcript {
	var final domain.Transcript
	if s, ok := t.sessions[sessionID]; ok {
		final = s.transcript.Clone()
		delete(t.sessions, sessionID)
	} else {
		final = domain.Transcript{}
	}

	for callID, sess := range t.callToSess {
		if sess == sessionID {
			delete(t.callToSess, callID)
		}
	}

	t.logger.Debug("session ended",
		slog.String("session_id", sessionID),
		slog.Int("turns", len(final)),
	)
	return final
}

// ActiveSessions returns the ids of all active sessions.
func (t *Tracker) ActiveSessions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot is a point-in-time view of tracker state for debugging.
type Snapshot struct {
	ActiveSessions []string          `json:"activeSessions"`
	CallMappings   map[string]string `json:"callMappings"`
	TurnCounts     map[string]int    `json:"turnCounts"`
}

// Debug returns a snapshot of current tracker state.
func (t *Tracker) Debug() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ActiveSessions: make([]string, 0, len(t.sessions)),
		CallMappings:   make(map[string]string, len(t.callToSess)),
		TurnCounts:     make(map[string]int, len(t.sessions)),
	}
	for id, s := range t.sessions {
		snap.ActiveSessions = append(snap.ActiveSessions, id)
		snap.TurnCounts[id] = len(s.transcript)
	}
	for call, sess := range t.callToSess {
		snap.CallMappings[call] = sess
	}
	return snap
}

// ExpireIdle removes sessions idle for longer than the TTL. Exposed for
// tests; the janitor calls it periodically.
func (t *Tracker) ExpireIdle() int {
	if t.ttl <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	var expired []string
	for id, s := range t.sessions {
		if s.lastActive.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		t.endLocked(id)
		t.logger.Info("idle session expired", slog.String("session_id", id))
	}
	return len(expired)
}

func (t *Tracker) janitor() {
	ticker := time.NewTicker(t.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.ExpireIdle()
		}
	}
}
