// Package interview runs an adaptive mock technical interview grounded in a
// stored resume and, optionally, a job description.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/rag"
	"github.com/WessleyAI/career-agent/pkg/fn"
	"github.com/WessleyAI/career-agent/pkg/llm"
	"github.com/google/uuid"
)

// ErrEvaluationFailed is returned when the evaluator's reply is not usable.
var ErrEvaluationFailed = errors.New("interview: AI evaluation failed")

const (
	promptChunks = 5
	contextHits  = 3

	resumeQuery = "skills experience projects"
	jobQuery    = "job requirements"

	strongAt  = 7.0
	weakBelow = 5.0
)

// ChunkReader loads stored chunks in index order.
type ChunkReader interface {
	Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error)
}

// Searcher retrieves the chunks of a document most relevant to a query.
// Implemented by rag.Service.
type Searcher interface {
	Search(ctx context.Context, query, docID string, t domain.DocType, k int) ([]rag.Hit, error)
}

type Service struct {
	llm      llm.Client
	chunks   ChunkReader
	search   Searcher
	sessions *SessionStore
	newID    func() string
	now      func() time.Time
	log      *slog.Logger
}

func New(client llm.Client, chunks ChunkReader, search Searcher, sessions *SessionStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		llm:      client,
		chunks:   chunks,
		search:   search,
		sessions: sessions,
		newID:    uuid.NewString,
		now:      time.Now,
		log:      log,
	}
}

type StartResult struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Mode      Mode   `json:"mode"`
}

// Start opens a session for userID. With a jobID the interview is targeted
// at that job, otherwise it is general.
func (s *Service) Start(ctx context.Context, userID, resumeID, jobID string) (*StartResult, error) {
	resume, err := s.texts(ctx, resumeID, domain.DocResume)
	if err != nil {
		return nil, err
	}
	var job []string
	mode := ModeGeneral
	if jobID != "" {
		if job, err = s.texts(ctx, jobID, domain.DocJob); err != nil {
			return nil, err
		}
		mode = ModeTargeted
	}

	question, err := s.ask(ctx, firstQuestionPrompt(resume, job))
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:              s.newID(),
		UserID:          userID,
		ResumeID:        resumeID,
		JobID:           jobID,
		Mode:            mode,
		Difficulty:      Easy,
		CurrentQuestion: question,
		History:         []Turn{},
		StartedAt:       s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("interview started", "session_id", sess.ID, "mode", mode)
	return &StartResult{SessionID: sess.ID, Question: question, Mode: mode}, nil
}

type evaluation struct {
	Feedback       string     `json:"feedback"`
	Scores         Scores     `json:"scores"`
	NextDifficulty Difficulty `json:"next_difficulty"`
}

type AnswerResult struct {
	Feedback     string     `json:"feedback"`
	Scores       Scores     `json:"scores"`
	NextQuestion string     `json:"next_question"`
	Difficulty   Difficulty `json:"difficulty"`
}

// Answer grades the answer to the current question and asks the next one.
// The session is only saved once both LLM calls succeed, so a failed call
// can be retried with the same answer.
func (s *Service) Answer(ctx context.Context, userID, sessionID, answer string) (*AnswerResult, error) {
	if err := domain.ValidateText("answer", answer); err != nil {
		return nil, err
	}
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := s.ask(ctx, evaluationPrompt(sess, answer))
	if err != nil {
		return nil, err
	}
	ev, err := llm.DecodeJSON[evaluation](reply)
	if err != nil || ev.Feedback == "" {
		s.log.Warn("interview: unusable evaluation", "session_id", sessionID, "err", err)
		return nil, ErrEvaluationFailed
	}

	sess.History = append(sess.History, Turn{
		Question: sess.CurrentQuestion,
		Answer:   answer,
		Feedback: ev.Feedback,
		Scores:   ev.Scores.clamped(),
	})
	if d := Difficulty(strings.ToLower(string(ev.NextDifficulty))); d.valid() {
		sess.Difficulty = d
	}

	resume := s.retrieve(ctx, resumeQuery, sess.ResumeID, domain.DocResume)
	var job []string
	if sess.Mode == ModeTargeted {
		job = s.retrieve(ctx, jobQuery, sess.JobID, domain.DocJob)
	}
	next, err := s.ask(ctx, followUpPrompt(sess, resume, job))
	if err != nil {
		return nil, err
	}
	sess.CurrentQuestion = next

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	last := sess.History[len(sess.History)-1]
	return &AnswerResult{Feedback: last.Feedback, Scores: last.Scores, NextQuestion: next, Difficulty: sess.Difficulty}, nil
}

type Report struct {
	SessionID  string   `json:"session_id"`
	FinalScore float64  `json:"final_score"`
	Answered   int      `json:"questions_answered"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Summary    string   `json:"summary"`
}

// Report summarises a session. The final score is the mean of every
// answer's three scores, rounded to one decimal.
func (s *Service) Report(ctx context.Context, userID, sessionID string) (*Report, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return buildReport(sess), nil
}

func buildReport(sess *Session) *Report {
	rep := &Report{SessionID: sess.ID, Answered: len(sess.History), Strengths: []string{}, Weaknesses: []string{}}
	var total float64
	for _, t := range sess.History {
		m := t.Scores.Mean()
		total += m
		switch {
		case m >= strongAt:
			rep.Strengths = append(rep.Strengths, t.Question)
		case m < weakBelow:
			rep.Weaknesses = append(rep.Weaknesses, t.Question)
		}
	}
	if rep.Answered > 0 {
		rep.FinalScore = math.Round(total/float64(rep.Answered)*10) / 10
	}
	rep.Summary = summary(rep)
	return rep
}

func summary(r *Report) string {
	if r.Answered == 0 {
		return "No questions answered yet."
	}
	return fmt.Sprintf("Answered %d question(s) with an average score of %.1f/10: %d strong, %d weak.",
		r.Answered, r.FinalScore, len(r.Strengths), len(r.Weaknesses))
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != "" && sess.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return sess, nil
}

func (s *Service) ask(ctx context.Context, prompt string) (string, error) {
	reply, err := s.llm.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("interview: complete: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (s *Service) texts(ctx context.Context, docID string, t domain.DocType) ([]string, error) {
	chunks, err := s.chunks.Chunks(ctx, docID, t)
	if err != nil {
		return nil, fmt.Errorf("interview: load %s: %w", t, err)
	}
	if len(chunks) == 0 {
		return nil, domain.NotFound(t)
	}
	return fn.Map(fn.Take(chunks, promptChunks), func(c domain.Chunk) string { return c.Text }), nil
}

// retrieve fetches prompt context; retrieval failures only cost context.
func (s *Service) retrieve(ctx context.Context, query, docID string, t domain.DocType) []string {
	hits, err := s.search.Search(ctx, query, docID, t, contextHits)
	if err != nil {
		s.log.Warn("interview: context search failed", "doc_id", docID, "type", t, "err", err)
		return nil
	}
	return fn.Map(hits, func(h rag.Hit) string { return h.Text })
}
