package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/career-agent/pkg/kv"
)

// SessionTTL is how long an idle session survives; every save refreshes it.
const SessionTTL = time.Hour

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("interview: session not found")

type Mode string

const (
	ModeTargeted Mode = "targeted"
	ModeGeneral  Mode = "general"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func (d Difficulty) valid() bool { return d == Easy || d == Medium || d == Hard }

// Scores are 0-10 ratings of one answer.
type Scores struct {
	Correctness float64 `json:"correctness"`
	Clarity     float64 `json:"clarity"`
	Depth       float64 `json:"depth"`
}

func (s Scores) Mean() float64 { return (s.Correctness + s.Clarity + s.Depth) / 3 }

func (s Scores) clamped() Scores {
	c := func(v float64) float64 { return max(0, min(10, v)) }
	return Scores{Correctness: c(s.Correctness), Clarity: c(s.Clarity), Depth: c(s.Depth)}
}

// Turn is one answered question.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Feedback string `json:"feedback"`
	Scores   Scores `json:"scores"`
}

// Session is the whole state of one mock interview.
type Session struct {
	ID              string     `json:"session_id"`
	UserID          string     `json:"user_id,omitempty"`
	ResumeID        string     `json:"resume_id"`
	JobID           string     `json:"job_id,omitempty"`
	Mode            Mode       `json:"mode"`
	Difficulty      Difficulty `json:"difficulty"`
	CurrentQuestion string     `json:"current_question"`
	History         []Turn     `json:"history"`
	StartedAt       time.Time  `json:"started_at"`
}

// SessionStore keeps sessions as JSON blobs in a kv.Store.
type SessionStore struct {
	kv  kv.Store
	ttl time.Duration
}

func NewSessionStore(store kv.Store) *SessionStore {
	return &SessionStore{kv: store, ttl: SessionTTL}
}

func sessionKey(id string) string { return kv.Key("interview", id) }

func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("interview: load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("interview: decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("interview: encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey(sess.ID), raw, s.ttl); err != nil {
		return fmt.Errorf("interview: save session: %w", err)
	}
	return nil
}
