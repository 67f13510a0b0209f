package main

import (
	"io"
	"net/http"
	"strconv"

	"github.com/WessleyAI/career-agent/engine/coach"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/pkg/mid"
)

// matchResponse flattens the match result and, when requested, the
// coaching report into one object.
type matchResponse struct {
	*match.Result
	*coach.Report
}

type askRequest struct {
	ResumeID string `json:"resume_id"`
	Question string `json:"question"`
}

type startRequest struct {
	ResumeID string `json:"resume_id"`
	JobID    string `json:"job_id,omitempty"`
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *server) handleMatch(w http.ResponseWriter, r *http.Request) {
	resumeID, jobID := r.PathValue("resume_id"), r.PathValue("job_id")
	if !s.owns(w, r, resumeID) {
		return
	}
	if err := domain.ValidateID("job_id", jobID); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.matcher.Compute(r.Context(), resumeID, jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := matchResponse{Result: res}
	if withCoach, _ := strconv.ParseBool(r.URL.Query().Get("coach")); withCoach {
		if resp.Report, err = s.coach.Report(r.Context(), resumeID, jobID, res); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := domain.ValidateQuestion("question", req.Question); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.owns(w, r, req.ResumeID) {
		return
	}
	ans, err := s.ask.Ask(r.Context(), req.ResumeID, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *server) handleInterviewStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.owns(w, r, req.ResumeID) {
		return
	}
	if req.JobID != "" {
		if err := domain.ValidateID("job_id", req.JobID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.interview.Start(r.Context(), caller(r).UserID, req.ResumeID, req.JobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleInterviewAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := domain.ValidateID("session_id", req.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.interview.Answer(r.Context(), caller(r).UserID, req.SessionID, req.Answer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleInterviewReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if err := domain.ValidateID("session_id", id); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.interview.Report(r.Context(), caller(r).UserID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *server) handleSTT(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		mid.Error(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	tr, err := s.speech.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	audio, err := s.speech.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer audio.Close()
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=speech.mp3")
	if _, err := io.Copy(w, audio); err != nil {
		s.log.Warn("tts stream interrupted", "err", err)
	}
}
