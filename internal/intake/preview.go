package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"golang.org/x/image/draw"
)

// PreviewMaxSide bounds the longer edge of a generated thumbnail.
const PreviewMaxSide = 320

// PreviewMaxPixels is the largest source image that gets decoded for a preview.
const PreviewMaxPixels = 50_000_000

var errPreviewTooLarge = errors.New("image too large for preview")

// PreviewTask renders a thumbnail in the background. Cancel abandons it; a cancelled
// or failed task finishes with no preview.
type PreviewTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	url    string
}

// StartPreview begins rendering raw as a JPEG data URL. PDFs finish immediately with no preview.
func StartPreview(ctx context.Context, raw RawFile, logger *slog.Logger) *PreviewTask {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &PreviewTask{cancel: cancel, done: make(chan struct{})}

	if raw.IsPDF() {
		close(t.done)
		return t
	}

	go func() {
		defer close(t.done)
		start := time.Now()
		url, err := renderPreview(ctx, raw.Content)
		if err != nil {
			logger.Debug("intake.preview.skipped", "name", raw.Name, "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		t.url = url
		logger.Debug("intake.preview.ok", "name", raw.Name, "bytes", len(url), "elapsed_ms", time.Since(start).Milliseconds())
	}()
	return t
}

func (t *PreviewTask) Cancel() { t.cancel() }

func (t *PreviewTask) Done() <-chan struct{} { return t.done }

// Result is valid after Done is closed. ok is false when there is no preview.
func (t *PreviewTask) Result() (string, bool) {
	select {
	case <-t.done:
		return t.url, t.url != ""
	default:
		return "", false
	}
}

func renderPreview(ctx context.Context, content []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > PreviewMaxPixels {
		return "", fmt.Errorf("%w: %dx%d", errPreviewTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img := src
	b := src.Bounds()
	if w, h := thumbSize(b.Dx(), b.Dy(), PreviewMaxSide); w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return "", err
	}
	return dataURL("image/jpeg", buf.Bytes()), nil
}

func thumbSize(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}

func dataURL(mimeType string, b []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}
