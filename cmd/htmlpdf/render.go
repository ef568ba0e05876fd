package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/fileutil"
	"github.com/alnah/go-htmlpdf/internal/markup"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage       = errors.New("invalid usage")
	ErrNoInput     = errors.New("no input specified")
	ErrReadSource  = errors.New("failed to read source")
	ErrWriteOutput = errors.New("failed to write output")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

const (
	// stdio names stdin as a source and stdout as an output.
	stdio = "-"

	// maxStdinSize bounds markup read from stdin.
	maxStdinSize = 64 << 20

	// stdinName is the file name used for stdin output in a directory.
	stdinName = "stdin"
)

// job is one source and where its PDF goes ("-" = stdout).
type job struct {
	Source     string
	OutputPath string
}

// RenderResult holds the outcome of a single render.
type RenderResult struct {
	Source     string
	OutputPath string
	Bytes      int
	Err        error
	Duration   time.Duration
}

// planJobs pairs every source with an output path.
// A single source may target a .pdf file or stdout; several sources go to
// a directory, named after each source.
func planJobs(sources []string, output string, base64 bool) ([]job, error) {
	if len(sources) == 0 {
		return nil, ErrNoInput
	}

	stdinCount := 0
	for _, s := range sources {
		if s == stdio {
			stdinCount++
		}
	}
	if stdinCount > 1 {
		return nil, fmt.Errorf("%w: stdin can only be read once", ErrUsage)
	}

	single := len(sources) == 1
	toFile := strings.EqualFold(filepath.Ext(output), ".pdf")
	switch {
	case output == stdio || (single && toFile):
		if !single {
			return nil, fmt.Errorf("%w: %d sources cannot share output %q", ErrUsage, len(sources), output)
		}
		return []job{{Source: sources[0], OutputPath: output}}, nil
	case toFile:
		return nil, fmt.Errorf("%w: %d sources cannot share output %q", ErrUsage, len(sources), output)
	case single && output == "" && sources[0] == stdio:
		return []job{{Source: stdio, OutputPath: stdio}}, nil
	}

	dir := output
	if dir == "" {
		dir = "."
	}

	jobs := make([]job, 0, len(sources))
	seen := make(map[string]int, len(sources))
	for _, src := range sources {
		name := fileutil.PDFName(src)
		if src == stdio {
			name = stdinName + ".pdf"
		}
		if base64 {
			name += ".b64"
		}

		seen[name]++
		if n := seen[name]; n > 1 {
			ext := filepath.Ext(name)
			if base64 {
				ext = ".pdf.b64"
			}
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		jobs = append(jobs, job{Source: src, OutputPath: filepath.Join(dir, name)})
	}
	return jobs, nil
}

// renderer renders jobs with shared settings.
type renderer struct {
	gen      Renderer
	params   *renderParams
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *zap.Logger
	markdown func() (*markup.Converter, error)
}

func newBatchRenderer(gen Renderer, params *renderParams, env *Environment, stderr io.Writer, logger *zap.Logger) *renderer {
	return &renderer{
		gen:    gen,
		params: params,
		stdin:  env.Stdin,
		stdout: env.Stdout,
		stderr: stderr,
		logger: logger,
		markdown: sync.OnceValues(func() (*markup.Converter, error) {
			return markup.NewConverter(markup.DefaultStyle)
		}),
	}
}

// renderAll renders jobs with at most workers in flight. Results keep the
// order of jobs; one failure does not stop the others.
func (r *renderer) renderAll(ctx context.Context, jobs []job, workers int) []RenderResult {
	results := make([]RenderResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = r.render(ctx, j)
			return nil
		})
	}
	_ = g.Wait() // workers report through results

	return results
}

// render runs a single job and writes its output.
func (r *renderer) render(ctx context.Context, j job) RenderResult {
	start := time.Now()
	result := RenderResult{Source: j.Source, OutputPath: j.OutputPath}
	done := func(err error) RenderResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if err := ctx.Err(); err != nil {
		return done(err)
	}

	source, err := r.resolveSource(ctx, j.Source)
	if err != nil {
		return done(err)
	}

	req := r.params.newRequest(source)
	if r.params.console {
		req.ConsoleHandler = r.printConsole(j.Source)
		req.ExceptionHandler = r.printException(j.Source)
	}

	res, err := r.gen.Generate(ctx, req)
	if err != nil {
		return done(err)
	}
	result.Bytes = res.Len()

	return done(r.write(res, j.OutputPath))
}

// resolveSource reads stdin and converts Markdown; files and URLs are
// handed to the library as they are.
func (r *renderer) resolveSource(ctx context.Context, src string) (string, error) {
	switch {
	case src == stdio:
		data, err := io.ReadAll(io.LimitReader(r.stdin, maxStdinSize+1))
		if err != nil {
			return "", fmt.Errorf("%w: stdin: %v", ErrReadSource, err)
		}
		if len(data) > maxStdinSize {
			return "", fmt.Errorf("%w: stdin exceeds %d bytes", ErrReadSource, maxStdinSize)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("stdin: %w", htmlpdf.ErrEmptySource)
		}
		return string(data), nil

	case fileutil.IsURL(src):
		return src, nil

	case fileutil.DirExists(src):
		return "", fmt.Errorf("%w: %s is a directory", ErrReadSource, src)

	case !fileutil.FileExists(src):
		return "", fmt.Errorf("%w: %s: %w", ErrReadSource, src, os.ErrNotExist)

	case markup.IsMarkdown(src):
		return r.markdownToHTML(ctx, src)

	default:
		return src, nil
	}
}

func (r *renderer) markdownToHTML(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- user-provided source
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadSource, err)
	}

	conv, err := r.markdown()
	if err != nil {
		return "", err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	html, err := conv.ToHTML(ctx, title, string(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("markdown converted", zap.String("source", path), zap.Int("html_bytes", len(html)))
	return html, nil
}

// write stores res at path, as raw PDF or base64 text.
func (r *renderer) write(res *htmlpdf.Result, path string) error {
	if path == stdio {
		var err error
		if r.params.base64 {
			_, err = io.WriteString(r.stdout, res.Base64()+"\n")
		} else {
			_, err = res.WriteTo(r.stdout)
		}
		if err != nil {
			return fmt.Errorf("%w: stdout: %v", ErrWriteOutput, err)
		}
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: creating output directory: %w", ErrWriteOutput, err)
		}
	}

	if r.params.base64 {
		// #nosec G306 -- output files are meant to be readable
		if err := os.WriteFile(path, []byte(res.Base64()+"\n"), filePermissions); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		return nil
	}
	return res.WriteFile(path)
}

// printConsole forwards page console calls to stderr.
func (r *renderer) printConsole(source string) func(htmlpdf.ConsoleEvent) {
	return func(ev htmlpdf.ConsoleEvent) {
		args := make([]string, 0, len(ev.Args))
		for _, a := range ev.Args {
			args = append(args, formatArg(a))
		}
		fmt.Fprintf(r.stderr, "[%s] console.%s: %s\n", source, ev.Type, strings.Join(args, " "))
	}
}

// printException forwards uncaught page exceptions to stderr.
func (r *renderer) printException(source string) func(htmlpdf.ExceptionEvent) {
	return func(ev htmlpdf.ExceptionEvent) {
		msg := ev.Description
		if msg == "" {
			msg = ev.Text
		}
		if ev.URL != "" {
			msg = fmt.Sprintf("%s (%s:%d:%d)", msg, ev.URL, ev.Line, ev.Column)
		}
		fmt.Fprintf(r.stderr, "[%s] exception: %s\n", source, msg)
	}
}

func formatArg(a htmlpdf.ConsoleArg) string {
	switch {
	case a.Type == "string":
		return a.Value.Str()
	case a.Description != "":
		return a.Description
	case a.Value.Nil():
		return a.Type
	default:
		return a.Value.JSON("", "")
	}
}

// ResultSummary holds the count of succeeded and failed renders.
type ResultSummary struct {
	Succeeded int
	Failed    int
}

// countResults tallies succeeded and failed renders.
func countResults(results []RenderResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

// printResults reports each render on w. Single failures are left to the
// caller, which prints them with a hint.
func printResults(w io.Writer, results []RenderResult, verbose bool) ResultSummary {
	summary := countResults(results)
	batch := len(results) > 1

	for _, r := range results {
		switch {
		case r.Err != nil:
			if batch {
				fmt.Fprintf(w, "FAILED %s: %v\n", r.Source, r.Err)
			}
		case r.OutputPath == stdio:
		case verbose:
			fmt.Fprintf(w, "%s -> %s (%d bytes, %v)\n", r.Source, r.OutputPath, r.Bytes, r.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "Created %s\n", r.OutputPath)
		}
	}

	if batch {
		fmt.Fprintf(w, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}
	return summary
}

// firstError returns the first failed result's error.
func firstError(results []RenderResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
