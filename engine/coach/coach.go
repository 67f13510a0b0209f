// Package coach turns a computed match into resume feedback and a learning
// plan using the configured LLM.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/pkg/fn"
	"github.com/WessleyAI/career-agent/pkg/llm"
)

const (
	// ErrParse is reported inside a Report when a reply is not the expected JSON.
	ErrParse = "Failed to parse AI response"
	// ErrUnavailable is reported inside a Report when the LLM call fails.
	ErrUnavailable = "AI service unavailable"

	systemPrompt = "You are an AI career assistant. Answer clearly and cite sources when possible."
	temperature  = 0.3

	learningResumeChunks = 3
	learningJobChunks    = 2
)

// ChunkReader loads stored chunks in index order.
type ChunkReader interface {
	Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error)
}

type Suggestion struct {
	Before string `json:"before"`
	After  string `json:"after"`
	Reason string `json:"reason"`
}

// Feedback is the resume coach's view of the best-matching chunks.
type Feedback struct {
	MissingSkills []string     `json:"missing_skills"`
	Suggestions   []Suggestion `json:"suggestions"`
	Error         string       `json:"error,omitempty"`
}

type Day struct {
	Day         int      `json:"day"`
	Goal        string   `json:"goal"`
	WhatToLearn []string `json:"what_to_learn"`
	MiniTask    string   `json:"mini_task"`
}

// LearningPath is a short study plan towards the job.
type LearningPath struct {
	SkillGaps        []string `json:"skill_gaps"`
	Roadmap          []Day    `json:"roadmap"`
	PortfolioProject string   `json:"portfolio_project"`
	Error            string   `json:"error,omitempty"`
}

type Report struct {
	Feedback     Feedback     `json:"ai_feedback"`
	LearningPath LearningPath `json:"learning_path"`
}

type Coach struct {
	llm    llm.Client
	chunks ChunkReader
	log    *slog.Logger
}

func New(client llm.Client, chunks ChunkReader, log *slog.Logger) *Coach {
	if log == nil {
		log = slog.Default()
	}
	return &Coach{llm: client, chunks: chunks, log: log}
}

// Report asks for feedback on res's top matches and for a learning path over
// the opening chunks of both documents. The two LLM calls run concurrently.
// LLM failures degrade to empty sections carrying an error string; only
// chunk loading can fail the call.
func (c *Coach) Report(ctx context.Context, resumeID, jobID string, res *match.Result) (*Report, error) {
	resume, err := c.chunks.Chunks(ctx, resumeID, domain.DocResume)
	if err != nil {
		return nil, fmt.Errorf("coach: load resume: %w", err)
	}
	job, err := c.chunks.Chunks(ctx, jobID, domain.DocJob)
	if err != nil {
		return nil, fmt.Errorf("coach: load job: %w", err)
	}

	var (
		fb Feedback
		lp LearningPath
	)
	fn.FanOut(
		func() error { fb = c.feedback(ctx, res.TopMatches); return nil },
		func() error {
			lp = c.learningPath(ctx, texts(fn.Take(resume, learningResumeChunks)), texts(fn.Take(job, learningJobChunks)))
			return nil
		},
	)
	return &Report{Feedback: fb, LearningPath: lp}, nil
}

func (c *Coach) feedback(ctx context.Context, top []match.Pair) Feedback {
	resume := fn.Map(top, func(p match.Pair) string { return p.ResumeChunk })
	job := fn.Map(top, func(p match.Pair) string { return p.JobMatch })

	fb, err := complete[Feedback](ctx, c, feedbackPrompt(strings.Join(job, "\n"), strings.Join(resume, "\n")))
	if err != nil {
		c.log.Warn("coach: feedback failed", "err", err)
		fb = Feedback{Error: errorText(err)}
	}
	if fb.MissingSkills == nil {
		fb.MissingSkills = []string{}
	}
	if fb.Suggestions == nil {
		fb.Suggestions = []Suggestion{}
	}
	return fb
}

func (c *Coach) learningPath(ctx context.Context, resume, job []string) LearningPath {
	lp, err := complete[LearningPath](ctx, c, learningPrompt(strings.Join(job, "\n"), strings.Join(resume, "\n")))
	if err != nil {
		c.log.Warn("coach: learning path failed", "err", err)
		lp = LearningPath{Error: errorText(err)}
	}
	if lp.SkillGaps == nil {
		lp.SkillGaps = []string{}
	}
	if lp.Roadmap == nil {
		lp.Roadmap = []Day{}
	}
	return lp
}

var errDecode = errors.New("coach: decode reply")

func complete[T any](ctx context.Context, c *Coach, prompt string) (T, error) {
	var zero T
	reply, err := c.llm.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, Temperature: temperature})
	if err != nil {
		return zero, err
	}
	v, err := llm.DecodeJSON[T](reply)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", errDecode, err)
	}
	return v, nil
}

func errorText(err error) string {
	if errors.Is(err, errDecode) {
		return ErrParse
	}
	return ErrUnavailable
}

func texts(chunks []domain.Chunk) []string {
	return fn.Map(chunks, func(c domain.Chunk) string { return c.Text })
}
