// Package tesseract backs ocr.Engine with Tesseract: recognition through the
// gosseract bindings, orientation detection through the tesseract CLI
// (the bindings do not expose OSD).
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/time/rate"

	"github.com/emandor/textconv/internal/img"
	"github.com/emandor/textconv/internal/ocr"
	"github.com/emandor/textconv/internal/telemetry"
)

type Options struct {
	BinPath     string   // tesseract executable, used for OSD and Check
	TessdataDir string   // empty: engine default
	Languages   []string // e.g. fra, ara
	OEM         int      // passed to the CLI; the bindings always init with the default (3)
	PSM         int
	Timeout     time.Duration
	RPS         int // engine invocations per second, 0 for unlimited
}

type Engine struct {
	opts    Options
	limiter *rate.Limiter
}

var _ ocr.Engine = (*Engine)(nil)

func New(opts Options) *Engine {
	if opts.BinPath == "" {
		opts.BinPath = "tesseract"
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS)
	}
	return &Engine{opts: opts, limiter: lim}
}

// Text runs recognition with a fresh client per page; gosseract clients are
// not safe to share between goroutines.
func (e *Engine) Text(ctx context.Context, page image.Image) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	data, err := img.EncodePNG(page)
	if err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if e.opts.TessdataDir != "" {
		client.TessdataPrefix = e.opts.TessdataDir
	}
	if err := client.SetLanguage(e.opts.Languages...); err != nil {
		return "", fmt.Errorf("set languages %v: %w", e.opts.Languages, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PSM)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	start := time.Now()
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	log := telemetry.L()
	log.Debug().
		Int("latency_ms", int(time.Since(start)/time.Millisecond)).
		Int("chars", len(text)).
		Msg("ocr_ok")
	return text, nil
}

// Orientation runs `tesseract stdin stdout --psm 0` and parses its report.
func (e *Engine) Orientation(ctx context.Context, page image.Image) (ocr.Orientation, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	data, err := img.EncodePNG(page)
	if err != nil {
		return 0, fmt.Errorf("encode page: %w", err)
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	out, err := e.run(ctx, bytes.NewReader(data), "stdin", "stdout",
		"--oem", strconv.Itoa(e.opts.OEM), "--psm", "0", "-l", "osd")
	if err != nil {
		return 0, err
	}
	return ocr.ParseOSD(out)
}

// Check verifies that the executable runs and every configured language has
// trained data installed. Missing pieces are configuration errors.
func (e *Engine) Check(ctx context.Context) error {
	if _, err := exec.LookPath(e.opts.BinPath); err != nil {
		return fmt.Errorf("tesseract not found at %q: %w", e.opts.BinPath, err)
	}
	out, err := e.run(ctx, nil, "--list-langs")
	if err != nil {
		return err
	}
	missing := ocr.MissingLanguages(out, e.opts.Languages)
	if len(missing) > 0 {
		return fmt.Errorf("tesseract language data missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (e *Engine) run(ctx context.Context, stdin *bytes.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.opts.BinPath, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if e.opts.TessdataDir != "" {
		cmd.Env = append(os.Environ(), "TESSDATA_PREFIX="+e.opts.TessdataDir)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tesseract %s timed out: %w", args[0], ctx.Err())
		}
		return "", fmt.Errorf("tesseract failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
