package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// PDF extracts text from PDF files with pdftotext.
type PDF struct {
	Runner CommandRunner
	// Binary defaults to "pdftotext".
	Binary string
}

func NewPDF() *PDF { return &PDF{Runner: ExecRunner{}, Binary: "pdftotext"} }

// Text returns the layout-preserving text of the PDF at path.
func (p *PDF) Text(ctx context.Context, path string) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftotext"
	}
	out, err := p.Runner.Run(ctx, bin, "-layout", path, "-")
	if err != nil {
		return "", fmt.Errorf("extract: pdf: %w", err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
