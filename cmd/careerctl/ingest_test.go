package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/ingest"
)

type stubPDF struct{ calls int }

func (s *stubPDF) Text(_ context.Context, path string) (string, error) {
	s.calls++
	return "pdf text of " + filepath.Base(path), nil
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.pdf":           "x",
		"nested/b.pdf":    "x",
		"nested/c.txt":    "x",
		"deep/er/d.pdf":   "x",
		"notes/readme.md": "x",
	})

	got, err := collectFiles(dir, []string{"**/*.pdf", "a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "deep", "er", "d.pdf"),
		filepath.Join(dir, "nested", "b.pdf"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if _, err := collectFiles(dir, []string{"[unclosed"}); err == nil {
		t.Fatal("expected bad pattern error")
	}
	got, _ = collectFiles(dir, []string{"nested"})
	if len(got) != 0 {
		t.Fatalf("directories must be skipped, got %v", got)
	}
}

func TestDocIDFromName(t *testing.T) {
	cases := map[string]string{
		"cv/Jane Doe (2024).pdf": "Jane-Doe-2024",
		"job_42.html":            "job_42",
		"/tmp/résumé.pdf":        "r-sum",
	}
	for in, want := range cases {
		got := docIDFromName(in)
		if got != want {
			t.Errorf("docIDFromName(%q) = %q, want %q", in, got, want)
		}
		if err := domain.ValidateID("doc_id", got); err != nil {
			t.Errorf("%q is not a valid id: %v", got, err)
		}
	}
	if id := docIDFromName("(((.pdf"); domain.ValidateID("doc_id", id) != nil {
		t.Errorf("fallback id %q is not valid", id)
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"job.html":  "<html><body><h1>Go Engineer</h1><script>x()</script><p>Remote</p></body></html>",
		"job.txt":   "  Go   Engineer \n\n Remote ",
		"empty.txt": "   ",
	})
	pdf := &stubPDF{}
	ctx := context.Background()

	text, err := readDocument(ctx, pdf, filepath.Join(dir, "job.html"))
	if err != nil || !strings.Contains(text, "Go Engineer") || strings.Contains(text, "x()") {
		t.Fatalf("html: %q %v", text, err)
	}
	text, err = readDocument(ctx, pdf, filepath.Join(dir, "job.txt"))
	if err != nil || text != "Go Engineer\nRemote" {
		t.Fatalf("text: %q %v", text, err)
	}
	if _, err := readDocument(ctx, pdf, filepath.Join(dir, "empty.txt")); err == nil {
		t.Fatal("expected empty text error")
	}
	if text, _ := readDocument(ctx, pdf, "cv.PDF"); text != "pdf text of cv.PDF" || pdf.calls != 1 {
		t.Fatalf("pdf: %q", text)
	}
}

func TestIngestFilesContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta", "c.txt": "gamma"})
	files, _ := collectFiles(dir, []string{"*.txt"})

	var got []ingest.Request
	submit := func(_ context.Context, req ingest.Request) (int, error) {
		got = append(got, req)
		if req.DocID == "b" {
			return 0, errors.New("embed failed")
		}
		return 1, nil
	}
	steps := 0
	results := ingestFiles(context.Background(), files, 2, domain.DocJob, docIDFromName, &stubPDF{}, submit, func() { steps++ })

	if len(results) != 3 || steps != 3 || len(got) != 3 {
		t.Fatalf("results=%d steps=%d submitted=%d", len(results), steps, len(got))
	}
	if got[0].Type != domain.DocJob || got[0].Text != "alpha" {
		t.Fatalf("unexpected request %+v", got[0])
	}

	var out bytes.Buffer
	err := report(&out, results)
	if err == nil || !strings.Contains(out.String(), "FAIL") || !strings.Contains(out.String(), "3 files, 1 failed") {
		t.Fatalf("report: %v\n%s", err, out.String())
	}
}

func TestIngestFilesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ingestFiles(ctx, []string{"a.txt"}, 1, domain.DocResume, docIDFromName, &stubPDF{},
		func(context.Context, ingest.Request) (int, error) { t.Fatal("submit after cancel"); return 0, nil }, func() {})
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestReportQueued(t *testing.T) {
	var out bytes.Buffer
	if err := report(&out, []fileResult{{Path: "a.pdf", DocID: "a", Chunks: -1}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "QUEUED") {
		t.Fatalf("unexpected report %q", out.String())
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"ingest", "match", "ask", "worker"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("missing subcommand %s", name)
		}
	}
}
