package pdf

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type PopplerConfig struct {
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
	Logger           *slog.Logger
}

func (c PopplerConfig) withDefaults() PopplerConfig {
	out := c
	if out.PDFInfoTimeout <= 0 {
		out.PDFInfoTimeout = 3 * time.Second
	}
	if out.PDFToTextTimeout <= 0 {
		out.PDFToTextTimeout = 10 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// Poppler shells out to pdfinfo and pdftotext on a temporary copy of the document.
type Poppler struct {
	cfg PopplerConfig
}

func NewPoppler(cfg PopplerConfig) *Poppler {
	return &Poppler{cfg: cfg.withDefaults()}
}

func (p *Poppler) Name() string { return "poppler" }

func (p *Poppler) Open(ctx context.Context, data []byte) (Source, error) {
	tmpDir, err := os.MkdirTemp("", "wordcloud-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	path := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	pages, err := p.pageCount(ctx, path)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, err
	}
	return &popplerSource{p: p, dir: tmpDir, path: path, pages: pages}, nil
}

type popplerSource struct {
	p     *Poppler
	dir   string
	path  string
	pages int
}

func (s *popplerSource) NumPages() int { return s.pages }

func (s *popplerSource) PageText(ctx context.Context, page int) (string, error) {
	return s.p.textForPage(ctx, s.path, page)
}

func (s *popplerSource) Close() error { return os.RemoveAll(s.dir) }

var pageCountRegex = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

func (p *Poppler) pageCount(ctx context.Context, pdfPath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PDFInfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, p.classifyErr("pdfinfo", err, ctx, stderr.String(), 0)
	}
	return parsePages(stdout.String())
}

// textForPage runs pdftotext for one page. Output is capped at 10 MiB.
func (p *Poppler) textForPage(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid page number: %d (must be >= 1)", page)
	}

	const maxPerPageBytes = 10<<20 + 1

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PDFToTextTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"pdftotext",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-nopgbrk",
		"-enc", "UTF-8",
		pdfPath,
		"-",
	)

	text, stderrStr, err := runCommandCaptureLimited(cmd, maxPerPageBytes)
	if err != nil {
		return "", p.classifyErr("pdftotext", err, ctx, stderrStr, page)
	}
	return text, nil
}

func parsePages(pdfinfoOut string) (int, error) {
	if m := pageCountRegex.FindStringSubmatch(pdfinfoOut); len(m) == 2 {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}

	// Fallback for builds that pad or reorder the field.
	sc := bufio.NewScanner(strings.NewReader(pdfinfoOut))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(strings.ToLower(line), "pages:") {
			continue
		}
		fields := strings.Fields(line[len("pages:"):])
		if len(fields) == 0 {
			return 0, fmt.Errorf("pdfinfo: empty page count")
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("pdfinfo: scan failed: %w", err)
	}
	return 0, fmt.Errorf("pdfinfo: pages field not found in output")
}

func validatePages(count int) (int, error) {
	if count < 0 || count > 50000 {
		return 0, fmt.Errorf("pdfinfo: unreasonable page count: %d", count)
	}
	return count, nil
}

// runCommandCaptureLimited runs cmd and captures stdout up to maxBytes (inclusive of sentinel).
func runCommandCaptureLimited(cmd *exec.Cmd, maxBytes int64) (stdoutText string, stderrText string, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start: %w", err)
	}

	outBytes, readErr := io.ReadAll(io.LimitReader(stdoutPipe, maxBytes))
	if int64(len(outBytes)) >= maxBytes {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	stderrStr := strings.TrimSpace(stderr.String())

	if readErr != nil {
		return "", stderrStr, fmt.Errorf("read stdout: %w", readErr)
	}
	if int64(len(outBytes)) >= maxBytes {
		return "", stderrStr, errOutputLimit
	}
	if waitErr != nil {
		return "", stderrStr, waitErr
	}
	return string(outBytes), stderrStr, nil
}

var errOutputLimit = errors.New("output exceeds limit")

// isHelpOrUsageOutput reports whether stderr is a poppler usage dump rather
// than a processing error.
func isHelpOrUsageOutput(stderr string) bool {
	return strings.Contains(stderr, "version ") && strings.Contains(stderr, "Usage:")
}

func (p *Poppler) classifyErr(tool string, err error, ctx context.Context, stderr string, page int) error {
	where := tool
	if page > 0 {
		where = fmt.Sprintf("%s page %d", tool, page)
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timeout: %w", where, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s: poppler-utils not installed: %w", tool, err)
	}
	if errors.Is(err, errOutputLimit) {
		return fmt.Errorf("%s: extracted text too large", where)
	}

	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("%s failed: %w", where, err)
	}

	p.cfg.Logger.Debug("poppler stderr", "tool", tool, "page", page, "stderr", truncate(stderr, 500))

	switch {
	case isHelpOrUsageOutput(stderr):
		return fmt.Errorf("%s failed (bad invocation)", where)
	case containsAny(stderr, "Incorrect password"):
		return fmt.Errorf("PDF is password protected")
	case containsAny(stderr, "PDF file is damaged", "Syntax Error", "Couldn't find trailer dictionary", "May not be a PDF file"):
		return fmt.Errorf("PDF appears to be damaged or invalid")
	case strings.Contains(stderr, "I/O Error") && strings.Contains(stderr, "Couldn't open file"):
		return fmt.Errorf("unable to open PDF")
	}
	return fmt.Errorf("%s failed: %s", where, truncate(stderr, 200))
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
