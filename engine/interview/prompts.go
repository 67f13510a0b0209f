package interview

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	systemPrompt = "You are a senior software engineer conducting a technical interview. Be strict but fair."
	temperature  = 0.4
)

func firstQuestionPrompt(resume, job []string) string {
	var b strings.Builder
	b.WriteString("You are a professional technical interviewer.\n\nCandidate resume highlights:\n")
	b.WriteString(strings.Join(resume, "\n"))
	if len(job) > 0 {
		b.WriteString("\n\nJob role requirements:\n")
		b.WriteString(strings.Join(job, "\n"))
		b.WriteString("\n\nAsk ONE clear, easy technical question to open the interview. It must be directly relevant to the job role.")
	} else {
		b.WriteString("\n\nAsk ONE easy technical question about the candidate's strongest skill.")
	}
	b.WriteString("\nDo not include evaluation criteria or follow-ups. Reply with the question only. Keep the tone friendly and professional.")
	return b.String()
}

func evaluationPrompt(sess *Session, answer string) string {
	state, _ := json.MarshalIndent(struct {
		Mode       Mode       `json:"mode"`
		Difficulty Difficulty `json:"difficulty"`
		History    []Turn     `json:"history"`
	}{sess.Mode, sess.Difficulty, sess.History}, "", "  ")

	return fmt.Sprintf(`You are an AI technical interviewer.

INTERVIEW STATE:
%s

QUESTION:
%s

CANDIDATE ANSWER:
%s

Give short feedback (2-3 lines), rate the answer for correctness, clarity and depth from 0 to 10 and choose the difficulty of the next question.

Reply with JSON only:
{
  "feedback": "text",
  "scores": {"correctness": 0, "clarity": 0, "depth": 0},
  "next_difficulty": "easy|medium|hard"
}`, state, sess.CurrentQuestion, answer)
}

func followUpPrompt(sess *Session, resume, job []string) string {
	var b strings.Builder
	b.WriteString("You are an adaptive technical interviewer.\n\nCandidate resume:\n")
	b.WriteString(strings.Join(resume, "\n"))
	if len(job) > 0 {
		b.WriteString("\n\nJob requirements:\n")
		b.WriteString(strings.Join(job, "\n"))
	}
	if n := len(sess.History); n > 0 {
		last := sess.History[n-1]
		fmt.Fprintf(&b, "\n\nPrevious question:\n%s\n\nCandidate answer:\n%s", last.Question, last.Answer)
	}
	about := "the candidate's strongest skills"
	if sess.Mode == ModeTargeted {
		about = "the job role"
	}
	fmt.Fprintf(&b, "\n\nAsk ONE %s level technical question. It must relate to the previous answer or %s. No feedback, no explanations, only the question.", sess.Difficulty, about)
	return b.String()
}
