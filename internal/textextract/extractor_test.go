package textextract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/internal/common"
)

type fakeSource struct {
	texts  []string
	closed bool
}

func (f *fakeSource) PageCount() int { return len(f.texts) }

func (f *fakeSource) PageText(n int) (string, error) { return f.texts[n], nil }

func (f *fakeSource) RenderPage(n int, dpi float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (f *fakeSource) Close() error { f.closed = true; return nil }

type stubRunner struct {
	stdout string
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return []byte(s.stdout), nil, s.err
}

// tsvDoc renders a minimal tesseract TSV document from (word, conf) pairs,
// one text line per call group.
func tsvDoc(words ...string) string {
	var b strings.Builder
	b.WriteString("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n")
	for i := 0; i+1 < len(words); i += 2 {
		fmt.Fprintf(&b, "5\t1\t1\t1\t1\t%d\t0\t0\t10\t10\t%s\t%s\n", i/2+1, words[i+1], words[i])
	}
	return b.String()
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("stub"), 0o644))
	return p
}

func newTestExtractor(src Source, openErr error, r Runner) *Extractor {
	e := NewExtractor(Config{Languages: "eng"}, nil)
	e.open = func(string) (Source, error) {
		if openErr != nil {
			return nil, openErr
		}
		return src, nil
	}
	if r != nil {
		e.runner = r
	}
	return e
}

func TestExtractNativeText(t *testing.T) {
	src := &fakeSource{texts: []string{"Invoice Number: INV-1\nTotal: $10.00", "page two"}}
	runner := &stubRunner{}
	e := newTestExtractor(src, nil, runner)

	res, err := e.Extract(context.Background(), tempFile(t, "digital.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "native", res.Engine)
	assert.Equal(t, 100.0, res.Confidence)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "INV-1")
	assert.Contains(t, res.Text, "page two")
	assert.Zero(t, runner.calls, "native path must never invoke recognition")
	assert.True(t, src.closed)
}

func TestExtractScannedPDF(t *testing.T) {
	src := &fakeSource{texts: []string{"", "  \n "}}
	runner := &stubRunner{stdout: tsvDoc("Total:", "90", "100.00", "80")}
	e := newTestExtractor(src, nil, runner)

	res, err := e.Extract(context.Background(), tempFile(t, "scan.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "ocr:eng", res.Engine)
	assert.Equal(t, 2, runner.calls, "one recognition pass per page")
	assert.InDelta(t, 85.0, res.Confidence, 0.001)
	assert.Contains(t, res.Text, "Total: 100.00")
}

func TestExtractImage(t *testing.T) {
	runner := &stubRunner{stdout: tsvDoc("RECEIPT", "92.5", "TOTAL", "91.5")}
	e := newTestExtractor(nil, nil, runner)

	res, err := e.Extract(context.Background(), tempFile(t, "receipt.png"))
	require.NoError(t, err)

	assert.Equal(t, "ocr:eng", res.Engine)
	assert.Equal(t, 1, res.Pages)
	assert.InDelta(t, 92.0, res.Confidence, 0.001)
	assert.Equal(t, "RECEIPT TOTAL", res.Text)
}

func TestExtractDecodeErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		e := newTestExtractor(nil, nil, &stubRunner{})
		_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
		assert.True(t, common.IsCode(err, common.CodeDecodeError))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		e := newTestExtractor(nil, nil, &stubRunner{})
		_, err := e.Extract(context.Background(), tempFile(t, "notes.txt"))
		assert.True(t, common.IsCode(err, common.CodeDecodeError))
	})

	t.Run("unopenable pdf", func(t *testing.T) {
		e := newTestExtractor(nil, fmt.Errorf("bad header"), &stubRunner{})
		_, err := e.Extract(context.Background(), tempFile(t, "broken.pdf"))
		assert.True(t, common.IsCode(err, common.CodeDecodeError))
	})

	t.Run("recognizer failure", func(t *testing.T) {
		e := newTestExtractor(nil, nil, &stubRunner{err: fmt.Errorf("exit status 1")})
		_, err := e.Extract(context.Background(), tempFile(t, "noisy.png"))
		assert.True(t, common.IsCode(err, common.CodeDecodeError))
	})
}

func TestExtractRecognitionTimeout(t *testing.T) {
	e := newTestExtractor(nil, nil, &stubRunner{})
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.Extract(ctx, tempFile(t, "slow.png"))
	assert.True(t, common.IsCode(err, common.CodeRecognitionTimeout), "got %v", err)
}

func TestExecRunnerReportsContextExpiry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The killed process reports "signal: killed"; Run must surface the
	// context error so callers can classify the failure.
	_, _, err := execRunner{logger: slog.Default()}.Run(ctx, "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractTimeoutThroughExecRunner(t *testing.T) {
	// A recognizer that outlives the configured budget, run through the real
	// exec runner, must surface as a recognition timeout rather than a
	// decode failure.
	script := filepath.Join(t.TempDir(), "slowrec")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	e := NewExtractor(Config{Tesseract: script, Timeout: 100 * time.Millisecond}, nil)
	_, err := e.Extract(context.Background(), tempFile(t, "slow.png"))
	assert.True(t, common.IsCode(err, common.CodeRecognitionTimeout), "got %v", err)
}
