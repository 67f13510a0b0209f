package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/career-agent/engine/app"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/extract"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/pkg/fn"
	"github.com/WessleyAI/career-agent/pkg/natsutil"
)

type ingestFlags struct {
	dir     string
	docType string
	publish bool
	useUUID bool
	workers int
}

// submitFunc hands one request to the local pipeline or to NATS. It returns
// the number of chunks stored, or -1 when the work was queued.
type submitFunc func(ctx context.Context, req ingest.Request) (int, error)

type fileResult struct {
	Path   string
	DocID  string
	Chunks int
	Err    error
}

func newIngestCmd(e *env) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest <glob>...",
		Short: "Chunk, embed and store documents matching the given patterns",
		Long: `Patterns are doublestar globs relative to --dir, so 'cv/**/*.pdf' walks
every subdirectory. PDFs go through pdftotext, .html files are stripped to
text and everything else is read as plain text.

The document id is the file name without extension (made id-safe), or a
random UUID with --uuid. With --publish the requests go to the
ingest.requests subject and a 'careerctl worker' stores them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, e, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.dir, "dir", "d", ".", "root directory the patterns are matched against")
	cmd.Flags().StringVarP(&f.docType, "type", "t", string(domain.DocResume), "document type: resume or job")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "publish to NATS instead of ingesting in-process")
	cmd.Flags().BoolVar(&f.useUUID, "uuid", false, "assign random document ids")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 4, "files extracted in parallel")
	return cmd
}

func runIngest(cmd *cobra.Command, e *env, f *ingestFlags, patterns []string) error {
	ctx := cmd.Context()
	docType := domain.DocType(f.docType)
	if err := domain.ValidateDocType(docType); err != nil {
		return err
	}
	files, err := collectFiles(f.dir, patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s under %s", strings.Join(patterns, " "), f.dir)
	}

	var submit submitFunc
	if f.publish {
		nc, err := app.ConnectNATS(e.cfg, "careerctl", e.log)
		if err != nil {
			return err
		}
		if nc == nil {
			return errors.New("--publish needs nats_url")
		}
		defer nc.Drain()
		submit = publisher(nc)
	} else {
		store, err := app.OpenChunkStore(e.cfg, e.log)
		if err != nil {
			return fmt.Errorf("chunk store: %w", err)
		}
		defer store.Close()
		svc := ingest.New(ingest.Deps{Embedder: app.NewEmbedder(e.cfg), Store: store, Logger: e.log})
		submit = func(ctx context.Context, req ingest.Request) (int, error) {
			ev, err := svc.Ingest(ctx, req)
			return ev.Chunks, err
		}
	}

	newID := docIDFromName
	if f.useUUID {
		newID = func(string) string { return uuid.NewString() }
	}

	out := cmd.OutOrStdout()
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
	)
	results := ingestFiles(ctx, files, f.workers, docType, newID, extract.NewPDF(), submit, func() { _ = bar.Add(1) })
	return report(out, results)
}

// collectFiles expands each pattern under dir and returns the sorted,
// de-duplicated set of regular files.
func collectFiles(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("bad pattern %q", p)
		}
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		for _, m := range matches {
			path := filepath.Join(dir, filepath.FromSlash(m))
			if seen[path] {
				continue
			}
			if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}
	slices.Sort(files)
	return files, nil
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// docIDFromName turns "cv/Jane Doe (2024).pdf" into "Jane-Doe-2024".
func docIDFromName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := strings.Trim(unsafeIDChars.ReplaceAllString(base, "-"), "-._")
	if len(id) > 128 {
		id = id[:128]
	}
	if id == "" {
		return uuid.NewString()
	}
	return id
}

type pdfText interface {
	Text(ctx context.Context, path string) (string, error)
}

// readDocument extracts the text of one file by extension.
func readDocument(ctx context.Context, pdf pdfText, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return pdf.Text(ctx, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	format := extract.FormatText
	if ext == ".html" || ext == ".htm" {
		format = extract.FormatHTML
	}
	return extract.JobText(format, string(b))
}

// ingestFiles extracts text from up to workers files at once, then submits
// them one at a time, calling step after each. A failing file is recorded
// and the rest continue; cancellation stops the run.
func ingestFiles(ctx context.Context, files []string, workers int, t domain.DocType, newID func(string) string,
	pdf pdfText, submit submitFunc, step func()) []fileResult {
	texts := fn.ParMap(files, workers, func(path string) fn.Result[string] {
		if err := ctx.Err(); err != nil {
			return fn.Err[string](err)
		}
		text, err := readDocument(ctx, pdf, path)
		return fn.FromPair(text, err)
	})

	results := make([]fileResult, 0, len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		r := fileResult{Path: path, DocID: newID(path)}
		text, err := texts[i].Unwrap()
		if err == nil {
			r.Chunks, err = submit(ctx, ingest.Request{DocID: r.DocID, Type: t, Text: text})
		}
		r.Err = err
		results = append(results, r)
		step()
	}
	return results
}

func publisher(nc *nats.Conn) submitFunc {
	return func(ctx context.Context, req ingest.Request) (int, error) {
		return -1, natsutil.Publish(ctx, nc, ingest.RequestSubject, req)
	}
}

func report(w io.Writer, results []fileResult) error {
	var failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", r.Path, r.Err)
		case r.Chunks < 0:
			fmt.Fprintf(w, "QUEUED  %s -> %s\n", r.Path, r.DocID)
		default:
			fmt.Fprintf(w, "OK    %s -> %s (%d chunks)\n", r.Path, r.DocID, r.Chunks)
		}
	}
	fmt.Fprintf(w, "%d files, %d failed\n", len(results), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}
