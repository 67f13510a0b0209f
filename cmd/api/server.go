package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/WessleyAI/career-agent/engine/account"
	"github.com/WessleyAI/career-agent/engine/auth"
	"github.com/WessleyAI/career-agent/engine/coach"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/extract"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/engine/interview"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/engine/rag"
	"github.com/WessleyAI/career-agent/engine/speech"
	"github.com/WessleyAI/career-agent/pkg/metrics"
	"github.com/WessleyAI/career-agent/pkg/mid"
	"github.com/WessleyAI/career-agent/pkg/resilience"
)

const (
	version = "1.0.0"

	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
	previewChunks = 5
)

type documentIngester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Ingested, error)
}

type chunkStore interface {
	Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error)
	DeleteDoc(ctx context.Context, docID string, t domain.DocType) error
}

// resultMatcher computes matches and forgets the cached ones of a resume
// whose chunks changed.
type resultMatcher interface {
	match.Matcher
	Invalidate(ctx context.Context, resumeID string) error
}

type pdfReader interface {
	Text(ctx context.Context, path string) (string, error)
}

type coachReporter interface {
	Report(ctx context.Context, resumeID, jobID string, res *match.Result) (*coach.Report, error)
}

type asker interface {
	Ask(ctx context.Context, resumeID, question string) (*rag.Answer, error)
}

type interviewer interface {
	Start(ctx context.Context, userID, resumeID, jobID string) (*interview.StartResult, error)
	Answer(ctx context.Context, userID, sessionID, answer string) (*interview.AnswerResult, error)
	Report(ctx context.Context, userID, sessionID string) (*interview.Report, error)
}

type speaker interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (speech.Transcript, error)
	Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// server holds the handler dependencies. Every field but log, metrics and
// loginLimiter is required.
type server struct {
	auth      *auth.Service
	accounts  account.Store
	ingest    documentIngester
	chunks    chunkStore
	pdf       pdfReader
	matcher   resultMatcher
	coach     coachReporter
	ask       asker
	interview interviewer
	speech    speaker

	uploadDir    string
	corsOrigin   string
	newID        func() string
	metrics      *metrics.Registry
	loginLimiter *resilience.KeyedLimiter
	log          *slog.Logger
}

func (s *server) routes() http.Handler {
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.loginLimiter == nil {
		s.loginLimiter = resilience.NewKeyedLimiter(resilience.LimiterOpts{Rate: 0.2, Burst: 5}, 10*time.Minute)
	}
	authed := mid.RequireAuth(s.auth, s.authError)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/info", handleInfo)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.Handle("POST /auth/login", mid.RateLimit(s.loginLimiter)(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.Handle("GET /auth/me", protect(s.handleMe))
	mux.Handle("POST /auth/logout", protect(s.handleLogout))
	mux.HandleFunc("POST /auth/oauth/google", s.handleOAuth(account.ProviderGoogle, "id_token"))
	mux.HandleFunc("POST /auth/oauth/github", s.handleOAuth(account.ProviderGitHub, "code"))

	mux.Handle("POST /api/resumes", protect(s.handleUploadResume))
	mux.Handle("GET /api/resumes/{id}/preview", protect(s.handlePreview))
	mux.Handle("POST /api/resumes/{id}/index", protect(s.handleReindex))
	mux.Handle("POST /api/jobs", protect(s.handleUploadJob))

	mux.Handle("GET /api/match/{resume_id}/{job_id}", protect(s.handleMatch))
	mux.Handle("POST /api/ask", protect(s.handleAsk))
	mux.Handle("POST /api/interview/start", protect(s.handleInterviewStart))
	mux.Handle("POST /api/interview/answer", protect(s.handleInterviewAnswer))
	mux.Handle("GET /api/interview/report/{session_id}", protect(s.handleInterviewReport))
	mux.Handle("POST /api/speech/stt", protect(s.handleSTT))
	mux.Handle("POST /api/speech/tts", protect(s.handleTTS))

	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.RequestID(),
		mid.Logger(s.log),
		mid.CORS(s.corsOrigin),
		mid.OTel("career-api"),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version, "description": "AI Career Agent API"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		mid.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// caller returns the principal RequireAuth attached to the request.
func caller(r *http.Request) mid.Principal {
	p, _ := mid.PrincipalFrom(r.Context())
	return p
}

// owns writes an error response and returns false unless the caller owns
// resumeID.
func (s *server) owns(w http.ResponseWriter, r *http.Request, resumeID string) bool {
	if err := domain.ValidateID("resume_id", resumeID); err != nil {
		s.writeError(w, r, err)
		return false
	}
	if err := account.VerifyOwnership(r.Context(), s.accounts, caller(r).UserID, resumeID); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

// authError answers a rejected bearer token. Bad or revoked tokens are 401;
// deactivated accounts and store failures go through writeError.
func (s *server) authError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevoked) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		mid.Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	s.writeError(w, r, err)
}

// writeError maps an error to its HTTP status. Unrecognised errors are
// logged and reported as 500 without detail.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound *domain.NotFoundError
		invalid  *domain.ValidationError
		policy   *auth.PolicyError
	)
	switch {
	case errors.As(err, &notFound):
		mid.Error(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, interview.ErrSessionNotFound):
		mid.Error(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, account.ErrUserNotFound):
		mid.Error(w, http.StatusNotFound, "User not found")
	case errors.As(err, &policy):
		mid.Error(w, http.StatusUnprocessableEntity, policy.Error())
	case errors.As(err, &invalid):
		mid.Error(w, http.StatusBadRequest, invalid.Field+": "+invalid.Wrapped.Error())
	case errors.Is(err, extract.ErrNoText):
		mid.Error(w, http.StatusUnprocessableEntity, "No text could be extracted from the document")
	case errors.Is(err, account.ErrEmailTaken):
		mid.Error(w, http.StatusBadRequest, "An account with this email already exists")
	case errors.Is(err, auth.ErrIncompleteProfile):
		mid.Error(w, http.StatusBadRequest, "Could not retrieve a verified email from the provider")
	case errors.Is(err, auth.ErrInvalidCredentials):
		mid.Error(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrRevoked):
		mid.Error(w, http.StatusUnauthorized, "Token has been revoked")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrOAuthRejected):
		mid.Error(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, auth.ErrInactive):
		mid.Error(w, http.StatusForbidden, "Account is deactivated")
	case errors.Is(err, domain.ErrForbidden):
		mid.Error(w, http.StatusForbidden, "You do not have access to this resource")
	case errors.Is(err, auth.ErrProviderNotConfigured):
		mid.Error(w, http.StatusNotImplemented, "OAuth provider is not configured")
	case errors.Is(err, speech.ErrUnavailable):
		mid.Error(w, http.StatusServiceUnavailable, "Speech backend not available")
	case errors.Is(err, interview.ErrEvaluationFailed):
		mid.Error(w, http.StatusBadGateway, "AI evaluation failed")
	case errors.Is(err, context.DeadlineExceeded):
		mid.Error(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		mid.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
