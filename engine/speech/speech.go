// Package speech transcribes interview answers and reads questions aloud
// through an OpenAI-compatible audio API.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/WessleyAI/career-agent/engine/domain"
)

var ErrUnavailable = errors.New("speech: no speech provider configured")

// MaxSpeechChars is the longest input the speech endpoint accepts.
const MaxSpeechChars = 4096

const DefaultVoice = openai.VoiceAlloy

// Voices newer than the client library's constants.
const (
	voiceAsh    openai.SpeechVoice = "ash"
	voiceBallad openai.SpeechVoice = "ballad"
	voiceCoral  openai.SpeechVoice = "coral"
	voiceVerse  openai.SpeechVoice = "verse"
)

var voices = map[openai.SpeechVoice]bool{
	openai.VoiceAlloy: true, voiceAsh: true, voiceBallad: true,
	voiceCoral: true, openai.VoiceEcho: true, openai.VoiceFable: true,
	openai.VoiceOnyx: true, openai.VoiceNova: true, openai.VoiceShimmer: true,
	voiceVerse: true,
}

type audioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

type Transcript struct {
	Text      string  `json:"transcript"`
	Language  string  `json:"language"`
	DurationS float64 `json:"duration_s"`
}

// Service is safe to use as a nil pointer; every call then returns
// ErrUnavailable.
type Service struct {
	api      audioAPI
	sttModel string
	ttsModel openai.SpeechModel
	log      *slog.Logger
}

// NewOpenAI builds a speech service. An empty baseURL keeps the library
// default.
func NewOpenAI(apiKey, baseURL string, logger *slog.Logger) *Service {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return newService(openai.NewClientWithConfig(cfg), logger)
}

func newService(api audioAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, sttModel: openai.Whisper1, ttsModel: openai.TTSModel1, log: logger}
}

// Transcribe converts an uploaded recording to text. filename only informs
// the provider of the container format.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (Transcript, error) {
	if s == nil || s.api == nil {
		return Transcript{}, ErrUnavailable
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return Transcript{}, fmt.Errorf("speech: read audio: %w", err)
	}
	if len(data) == 0 {
		return Transcript{}, domain.NewValidationError("file", filename, domain.ErrEmptyText)
	}
	if filepath.Ext(filename) == "" {
		filename = "audio.webm"
	}

	resp, err := s.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.sttModel,
		FilePath: filepath.Base(filename),
		Reader:   bytes.NewReader(data),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("speech: transcribe: %w", err)
	}
	s.log.Debug("transcribed audio", "bytes", len(data), "duration_s", resp.Duration)
	return Transcript{
		Text:      strings.TrimSpace(resp.Text),
		Language:  resp.Language,
		DurationS: math.Round(resp.Duration*100) / 100,
	}, nil
}

// Synthesize returns MP3 audio for text. Unknown voices fall back to
// DefaultVoice. The caller closes the returned reader.
func (s *Service) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if s == nil || s.api == nil {
		return nil, ErrUnavailable
	}
	if err := domain.ValidateText("text", text); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(text) > MaxSpeechChars {
		return nil, domain.NewValidationError("text", domain.Truncate(text, 40), domain.ErrQuestionTooLong)
	}
	v := openai.SpeechVoice(strings.ToLower(voice))
	if !voices[v] {
		v = DefaultVoice
	}

	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.ttsModel,
		Input:          text,
		Voice:          v,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	return resp, nil
}
