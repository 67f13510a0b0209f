package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/WessleyAI/career-agent/engine/account"
	"github.com/WessleyAI/career-agent/engine/auth"
	"github.com/WessleyAI/career-agent/engine/coach"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/engine/interview"
	"github.com/WessleyAI/career-agent/engine/match"
	"github.com/WessleyAI/career-agent/engine/rag"
	"github.com/WessleyAI/career-agent/engine/speech"
	"github.com/WessleyAI/career-agent/pkg/kv"
	"github.com/WessleyAI/career-agent/pkg/resilience"
)

// --- Fakes ---

type fakeIngest struct {
	reqs []ingest.Request
	err  error
}

func (f *fakeIngest) Ingest(_ context.Context, req ingest.Request) (ingest.Ingested, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return ingest.Ingested{}, f.err
	}
	return ingest.Ingested{DocID: req.DocID, Type: req.Type, Chunks: 2}, nil
}

type fakeChunks map[string][]domain.Chunk

func (f fakeChunks) Chunks(_ context.Context, docID string, _ domain.DocType) ([]domain.Chunk, error) {
	return f[docID], nil
}

func (f fakeChunks) DeleteDoc(_ context.Context, docID string, _ domain.DocType) error {
	delete(f, docID)
	return nil
}

type fakePDF struct {
	text string
	err  error
}

func (f *fakePDF) Text(context.Context, string) (string, error) { return f.text, f.err }

type fakeMatcher struct {
	res         *match.Result
	err         error
	invalidated []string
}

func (f *fakeMatcher) Compute(context.Context, string, string) (*match.Result, error) {
	return f.res, f.err
}

func (f *fakeMatcher) Invalidate(_ context.Context, resumeID string) error {
	f.invalidated = append(f.invalidated, resumeID)
	return nil
}

// failingOwnership is an account store that cannot record ownership.
type failingOwnership struct {
	account.Store
}

func (failingOwnership) AddOwnership(context.Context, string, string) error {
	return errors.New("database is locked")
}

type fakeCoach struct{}

func (fakeCoach) Report(context.Context, string, string, *match.Result) (*coach.Report, error) {
	return &coach.Report{Feedback: coach.Feedback{MissingSkills: []string{"Kubernetes"}, Suggestions: []coach.Suggestion{}}}, nil
}

type fakeAsk struct{}

func (fakeAsk) Ask(_ context.Context, _, question string) (*rag.Answer, error) {
	return &rag.Answer{Query: question, Result: "Five years of Go.", Citations: []string{"Chunk 0: Go developer"}}, nil
}

type fakeInterview struct{ lastUser string }

func (f *fakeInterview) Start(_ context.Context, userID, _, jobID string) (*interview.StartResult, error) {
	f.lastUser = userID
	mode := interview.ModeGeneral
	if jobID != "" {
		mode = interview.ModeTargeted
	}
	return &interview.StartResult{SessionID: "s1", Question: "Tell me about a project.", Mode: mode}, nil
}

func (f *fakeInterview) Answer(_ context.Context, _, sessionID, _ string) (*interview.AnswerResult, error) {
	if sessionID != "s1" {
		return nil, interview.ErrSessionNotFound
	}
	return &interview.AnswerResult{Feedback: "Good", NextQuestion: "Why?", Difficulty: interview.Medium}, nil
}

func (f *fakeInterview) Report(_ context.Context, _, sessionID string) (*interview.Report, error) {
	if sessionID != "s1" {
		return nil, interview.ErrSessionNotFound
	}
	return &interview.Report{SessionID: "s1", FinalScore: 7.5, Strengths: []string{}, Weaknesses: []string{}}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) Transcribe(_ context.Context, _ string, audio io.Reader) (speech.Transcript, error) {
	b, _ := io.ReadAll(audio)
	return speech.Transcript{Text: fmt.Sprintf("%d bytes", len(b)), Language: "en"}, nil
}

func (fakeSpeech) Synthesize(_ context.Context, text, _ string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError("text", "", domain.ErrEmptyText)
	}
	return io.NopCloser(strings.NewReader("ID3")), nil
}

// --- Harness ---

type harness struct {
	t        *testing.T
	srv      *server
	handler  http.Handler
	accounts account.Store
	ingest   *fakeIngest
	matcher  *fakeMatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := account.OpenSQLite(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewTokens("test-secret", 0, 0, kv.NewMemory(), nil)
	n := 0
	h := &harness{t: t, accounts: store, ingest: &fakeIngest{}, matcher: &fakeMatcher{}}
	h.srv = &server{
		auth:     auth.New(store, tokens, auth.Options{BcryptCost: bcrypt.MinCost}, nil),
		accounts: store,
		ingest:   h.ingest,
		chunks: fakeChunks{"resume-1": {
			{Index: 0, Text: strings.Repeat("x", 200)},
			{Index: 1, Text: "second"},
		}},
		pdf:        &fakePDF{text: "Go developer with five years of experience"},
		matcher:    h.matcher,
		coach:      fakeCoach{},
		ask:        fakeAsk{},
		interview:  &fakeInterview{},
		speech:     fakeSpeech{},
		uploadDir:  t.TempDir(),
		corsOrigin: "*",
		newID: func() string {
			n++
			return fmt.Sprintf("doc-%d", n)
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.handler = h.srv.routes()
	return h
}

func (h *harness) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) json(method, path, token string, v any) *httptest.ResponseRecorder {
	h.t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	return h.do(method, path, token, body, "application/json")
}

// register signs up a user and returns its access token and id.
func (h *harness) register(email string) (string, string) {
	h.t.Helper()
	rec := h.json("POST", "/auth/register", "", registerRequest{Email: email, Password: "Secret123", Name: "Test"})
	if rec.Code != http.StatusCreated {
		h.t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var sess auth.Session
	decode(h.t, rec, &sess)
	return sess.AccessToken, sess.User.ID
}

func (h *harness) own(userID, resumeID string) {
	h.t.Helper()
	if err := h.accounts.AddOwnership(context.Background(), userID, resumeID); err != nil {
		h.t.Fatal(err)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}

func multipartFile(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// --- Tests ---

func TestHealthAndInfo(t *testing.T) {
	h := newHarness(t)

	rec := h.do("GET", "/api/health", "", nil, "")
	var resp map[string]string
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health: %d %v", rec.Code, resp)
	}

	rec = h.do("GET", "/api/info", "", nil, "")
	decode(t, rec, &resp)
	if resp["version"] != version {
		t.Fatalf("info: %v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	if rec := h.do("GET", "/metrics", "", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")

	if rec := h.do("GET", "/auth/me", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: %d", rec.Code)
	}
	rec := h.do("GET", "/auth/me", token, nil, "")
	var me account.User
	decode(t, rec, &me)
	if rec.Code != http.StatusOK || me.Email != "ada@example.com" {
		t.Fatalf("me: %d %+v", rec.Code, me)
	}

	rec = h.json("POST", "/auth/register", "", registerRequest{Email: "ada@example.com", Password: "Secret123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: %d", rec.Code)
	}
	rec = h.json("POST", "/auth/register", "", registerRequest{Email: "bob@example.com", Password: "weak"})
	if rec.Code != http.StatusUnprocessableEntity || !strings.HasPrefix(errorOf(t, rec), "Password must contain") {
		t.Fatalf("weak password: %d", rec.Code)
	}

	rec = h.json("POST", "/auth/login", "", loginRequest{Email: "ada@example.com", Password: "Nope12345"})
	if rec.Code != http.StatusUnauthorized || errorOf(t, rec) != "Invalid email or password" {
		t.Fatalf("bad login: %d", rec.Code)
	}
	rec = h.json("POST", "/auth/login", "", loginRequest{Email: "ada@example.com", Password: "Secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var sess auth.Session
	decode(t, rec, &sess)

	rec = h.json("POST", "/auth/refresh", "", refreshRequest{RefreshToken: sess.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body)
	}
	rec = h.json("POST", "/auth/refresh", "", refreshRequest{RefreshToken: sess.RefreshToken})
	if rec.Code != http.StatusUnauthorized || errorOf(t, rec) != "Token has been revoked" {
		t.Fatalf("reused refresh: %d", rec.Code)
	}

	if rec := h.do("POST", "/auth/logout", token, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec := h.do("GET", "/auth/me", token, nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", rec.Code)
	}
}

func TestAuthDeactivatedAccount(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")

	ctx := context.Background()
	u, err := h.accounts.UserByID(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	u.IsActive = false
	if err := h.accounts.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	rec := h.do("GET", "/auth/me", token, nil, "")
	if rec.Code != http.StatusForbidden || errorOf(t, rec) != "Account is deactivated" {
		t.Fatalf("deactivated account: %d", rec.Code)
	}
}

func TestAuthInvalidToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do("GET", "/auth/me", "not-a-jwt", nil, "")
	if rec.Code != http.StatusUnauthorized || errorOf(t, rec) != "invalid or expired token" {
		t.Fatalf("invalid token: %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected a Bearer challenge")
	}
}

func TestAuthAccountStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")
	if err := h.accounts.Close(); err != nil {
		t.Fatal(err)
	}

	rec := h.do("GET", "/auth/me", token, nil, "")
	if rec.Code != http.StatusInternalServerError || errorOf(t, rec) != "internal server error" {
		t.Fatalf("store outage: %d", rec.Code)
	}
}

func TestOAuthNotConfigured(t *testing.T) {
	h := newHarness(t)
	rec := h.json("POST", "/auth/oauth/google", "", map[string]string{"id_token": "x"})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
	rec = h.json("POST", "/auth/oauth/github", "", map[string]string{"code": "x"})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t)
	h.srv.loginLimiter = resilience.NewKeyedLimiter(resilience.LimiterOpts{Rate: 0, Burst: 1}, 0)
	h.handler = h.srv.routes()

	body := loginRequest{Email: "x@example.com", Password: "Secret123"}
	if rec := h.json("POST", "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first login: %d", rec.Code)
	}
	if rec := h.json("POST", "/auth/login", "", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second login: %d", rec.Code)
	}
}

func TestUploadResume(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")

	body, ct := multipartFile(t, "cv.pdf", "%PDF-1.4")
	rec := h.do("POST", "/api/resumes", token, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	var up uploadResponse
	decode(t, rec, &up)
	if up.ResumeID != "doc-1" || up.Chunks != 2 || up.Status != "uploaded" {
		t.Fatalf("unexpected response %+v", up)
	}
	if len(h.ingest.reqs) != 1 || h.ingest.reqs[0].Type != domain.DocResume {
		t.Fatalf("unexpected ingest %+v", h.ingest.reqs)
	}
	if _, err := os.Stat(filepath.Join(h.srv.uploadDir, "doc-1.pdf")); err != nil {
		t.Fatalf("upload not saved: %v", err)
	}
	ok, _ := h.accounts.Owns(context.Background(), userID, "doc-1")
	if !ok {
		t.Fatal("ownership not recorded")
	}

	if rec := h.do("POST", "/api/resumes/doc-1/index", token, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("reindex: %d %s", rec.Code, rec.Body)
	}
	if len(h.matcher.invalidated) != 1 || h.matcher.invalidated[0] != "doc-1" {
		t.Fatalf("reindex should invalidate cached matches, got %v", h.matcher.invalidated)
	}

	body, ct = multipartFile(t, "cv.docx", "PK")
	if rec := h.do("POST", "/api/resumes", token, body, ct); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-pdf: %d", rec.Code)
	}
}

func TestUploadResumeExtractionFails(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")
	h.srv.pdf = &fakePDF{err: errors.New("pdftotext: exit status 1")}

	body, ct := multipartFile(t, "cv.pdf", "%PDF-1.4")
	if rec := h.do("POST", "/api/resumes", token, body, ct); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(h.srv.uploadDir, "doc-1.pdf")); !os.IsNotExist(err) {
		t.Fatalf("failed upload should be removed, stat err %v", err)
	}
}

func TestUploadResumeOwnershipFails(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")
	chunks := fakeChunks{"doc-1": {{Index: 0, Text: "Go developer"}}}
	h.srv.chunks = chunks
	h.srv.accounts = failingOwnership{h.accounts}

	body, ct := multipartFile(t, "cv.pdf", "%PDF-1.4")
	if rec := h.do("POST", "/api/resumes", token, body, ct); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(h.srv.uploadDir, "doc-1.pdf")); !os.IsNotExist(err) {
		t.Fatalf("unowned upload should be removed, stat err %v", err)
	}
	if _, ok := chunks["doc-1"]; ok {
		t.Fatal("unowned upload should have its chunks deleted")
	}
}

func TestPreviewOwnership(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")
	other, _ := h.register("bob@example.com")
	h.own(userID, "resume-1")

	rec := h.do("GET", "/api/resumes/resume-1/preview", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body)
	}
	var pv previewResponse
	decode(t, rec, &pv)
	if pv.TotalChunks != 2 || len(pv.Previews) != 2 || len([]rune(pv.Previews[0].Preview)) != domain.ListPreviewLen {
		t.Fatalf("unexpected preview %+v", pv)
	}

	if rec := h.do("GET", "/api/resumes/resume-1/preview", other, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("other user: %d", rec.Code)
	}
	h.own(userID, "empty")
	if rec := h.do("GET", "/api/resumes/empty/preview", token, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("no chunks: %d", rec.Code)
	}
}

func TestUploadJob(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")

	rec := h.json("POST", "/api/jobs", token, jobRequest{Description: "<p>Go engineer</p>", Format: "html"})
	if rec.Code != http.StatusOK {
		t.Fatalf("job: %d %s", rec.Code, rec.Body)
	}
	var jr jobResponse
	decode(t, rec, &jr)
	if jr.JobID != "doc-1" || h.ingest.reqs[0].Type != domain.DocJob || h.ingest.reqs[0].Text != "Go engineer" {
		t.Fatalf("unexpected job %+v %+v", jr, h.ingest.reqs)
	}

	if rec := h.json("POST", "/api/jobs", token, jobRequest{Description: "   "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty job: %d", rec.Code)
	}
}

func TestMatch(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")
	h.own(userID, "resume-1")
	h.matcher.res = &match.Result{MatchScorePercent: 70, ResumeChunks: 3, JobChunks: 2, TopMatches: []match.Pair{}}

	rec := h.do("GET", "/api/match/resume-1/job-1", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("match: %d %s", rec.Code, rec.Body)
	}
	var plain map[string]any
	decode(t, rec, &plain)
	if plain["match_score_percent"] != 70.0 {
		t.Fatalf("unexpected body %v", plain)
	}
	if _, ok := plain["ai_feedback"]; ok {
		t.Fatal("coaching should be opt-in")
	}

	rec = h.do("GET", "/api/match/resume-1/job-1?coach=true", token, nil, "")
	var coached map[string]any
	decode(t, rec, &coached)
	if _, ok := coached["ai_feedback"]; !ok || coached["resume_chunks"] != 3.0 {
		t.Fatalf("expected coaching fields, got %v", coached)
	}

	h.matcher.res, h.matcher.err = nil, domain.NotFound(domain.DocJob)
	rec = h.do("GET", "/api/match/resume-1/job-1", token, nil, "")
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "Job not found" {
		t.Fatalf("missing job: %d", rec.Code)
	}

	if rec := h.do("GET", "/api/match/someone-else/job-1", token, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("not owner: %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")
	h.own(userID, "resume-1")

	rec := h.json("POST", "/api/ask", token, askRequest{ResumeID: "resume-1", Question: "What languages do I know?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", rec.Code, rec.Body)
	}
	var ans rag.Answer
	decode(t, rec, &ans)
	if ans.Result == "" || len(ans.Citations) != 1 {
		t.Fatalf("unexpected answer %+v", ans)
	}

	if rec := h.json("POST", "/api/ask", token, askRequest{ResumeID: "resume-1", Question: "Hi"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short question: %d", rec.Code)
	}
	if rec := h.json("POST", "/api/ask", token, askRequest{ResumeID: "resume-2", Question: "What languages?"}); rec.Code != http.StatusForbidden {
		t.Fatalf("not owner: %d", rec.Code)
	}
}

func TestInterview(t *testing.T) {
	h := newHarness(t)
	token, userID := h.register("ada@example.com")
	h.own(userID, "resume-1")

	rec := h.json("POST", "/api/interview/start", token, startRequest{ResumeID: "resume-1", JobID: "job-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var start interview.StartResult
	decode(t, rec, &start)
	if start.SessionID != "s1" || start.Mode != interview.ModeTargeted {
		t.Fatalf("unexpected start %+v", start)
	}
	if got := h.srv.interview.(*fakeInterview).lastUser; got != userID {
		t.Fatalf("session started for %q", got)
	}

	rec = h.json("POST", "/api/interview/answer", token, answerRequest{SessionID: "s1", Answer: "I built it."})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: %d", rec.Code)
	}
	rec = h.json("POST", "/api/interview/answer", token, answerRequest{SessionID: "gone", Answer: "x"})
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "Session not found" {
		t.Fatalf("missing session: %d", rec.Code)
	}

	if rec := h.do("GET", "/api/interview/report/s1", token, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("report: %d", rec.Code)
	}
	if rec := h.do("GET", "/api/interview/report/gone", token, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing report: %d", rec.Code)
	}
}

func TestSpeech(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("ada@example.com")

	body, ct := multipartFile(t, "answer.webm", "abcd")
	rec := h.do("POST", "/api/speech/stt", token, body, ct)
	var tr speech.Transcript
	decode(t, rec, &tr)
	if rec.Code != http.StatusOK || tr.Text != "4 bytes" {
		t.Fatalf("stt: %d %+v", rec.Code, tr)
	}

	rec = h.json("POST", "/api/speech/tts", token, ttsRequest{Text: "Hello"})
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/mpeg" || rec.Body.String() != "ID3" {
		t.Fatalf("tts: %d %q", rec.Code, rec.Body)
	}
	if rec := h.json("POST", "/api/speech/tts", token, ttsRequest{Text: " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty tts: %d", rec.Code)
	}

	var none *speech.Service
	h.srv.speech = none
	if rec := h.json("POST", "/api/speech/tts", token, ttsRequest{Text: "Hello"}); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no provider: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	rec := h.do("OPTIONS", "/api/ask", "", nil, "")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}
}
