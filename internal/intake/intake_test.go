package intake

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSelectFileTooLargeRegardlessOfType(t *testing.T) {
	in := New(Config{}, nil)
	for _, mt := range []string{"image/jpeg", "application/pdf", "image/heic", "text/plain", ""} {
		_, err := in.SelectFile(Candidate{Name: "big", MIMEType: mt, Size: constants.MaxUploadBytes + 1})
		if got := common.KindOf(err); got != common.KindFileTooLarge {
			t.Errorf("mime %q: kind = %q, want %s", mt, got, common.KindFileTooLarge)
		}
	}
}

func TestSelectFileSizeCountsContentLength(t *testing.T) {
	in := New(Config{}, nil)
	content := make([]byte, constants.MaxUploadBytes+1)
	_, err := in.SelectFile(Candidate{Name: "big.jpg", MIMEType: "image/jpeg", Size: 1, Content: content})
	if got := common.KindOf(err); got != common.KindFileTooLarge {
		t.Fatalf("kind = %q, want %s", got, common.KindFileTooLarge)
	}

	raw, err := in.SelectFile(Candidate{Name: "r.png", MIMEType: "image/png", Size: 1, Content: []byte("0123456789")})
	if err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if raw.Size != 10 {
		t.Fatalf("size = %d, want 10", raw.Size)
	}
}

func TestSelectFileAtLimitIsAccepted(t *testing.T) {
	in := New(Config{}, nil)
	raw, err := in.SelectFile(Candidate{Name: "edge.pdf", MIMEType: "application/pdf", Size: constants.MaxUploadBytes})
	if err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if raw.Size != constants.MaxUploadBytes {
		t.Fatalf("size = %d", raw.Size)
	}
}

func TestSelectFileHEICIsTreatedAsJPEG(t *testing.T) {
	in := New(Config{}, nil)
	for _, mt := range []string{"image/heic", "image/heif", "IMAGE/HEIC"} {
		raw, err := in.SelectFile(Candidate{Name: "IMG_0001.HEIC", MIMEType: mt, Content: []byte("not really jpeg")})
		if err != nil {
			t.Fatalf("mime %q: %v", mt, err)
		}
		if raw.MIMEType != constants.MIMEJPEG {
			t.Fatalf("mime %q normalized to %q", mt, raw.MIMEType)
		}
		if raw.DeclaredType != mt {
			t.Fatalf("declared type lost: %q", raw.DeclaredType)
		}
	}
}

func TestSelectFileUnsupportedType(t *testing.T) {
	in := New(Config{}, nil)
	for _, mt := range []string{"text/plain", "image/gif", "application/zip"} {
		_, err := in.SelectFile(Candidate{Name: "x", MIMEType: mt, Content: []byte("x")})
		if got := common.KindOf(err); got != common.KindUnsupportedType {
			t.Errorf("mime %q: kind = %q", mt, got)
		}
	}
}

func TestSelectFileSniffsWhenTypeMissing(t *testing.T) {
	in := New(Config{}, nil)
	raw, err := in.SelectFile(Candidate{Name: "scan", Content: pngBytes(t, 4, 4)})
	if err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if raw.MIMEType != constants.MIMEPNG {
		t.Fatalf("mime = %q, want png", raw.MIMEType)
	}

	raw, err = in.SelectFile(Candidate{Name: "factura.pdf", Content: []byte("%PDF-1.4\n")})
	if err != nil {
		t.Fatalf("SelectFile pdf: %v", err)
	}
	if !raw.IsPDF() {
		t.Fatalf("mime = %q, want pdf", raw.MIMEType)
	}
}

func TestSelectFileCopiesContentAndHashes(t *testing.T) {
	in := New(Config{}, nil)
	content := []byte("%PDF-1.4 body")
	raw, err := in.SelectFile(Candidate{Name: "a.pdf", MIMEType: "application/pdf; charset=binary", Content: content})
	if err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	content[0] = 'X'
	if raw.Content[0] != '%' {
		t.Fatalf("RawFile content aliases caller buffer")
	}
	if len(raw.SHA256) != 64 {
		t.Fatalf("sha256 = %q", raw.SHA256)
	}
}

func TestAcceptHintFollowsDevice(t *testing.T) {
	if got := New(Config{HandheldDevice: true}, nil).AcceptHint(); !strings.Contains(got, "capture=camera") {
		t.Fatalf("handheld hint = %q", got)
	}
	if got := New(Config{}, nil).AcceptHint(); got != "image/jpeg,image/png,application/pdf" {
		t.Fatalf("desktop hint = %q", got)
	}
}

func TestReadCandidateSkipsOversizedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.jpg")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xff}, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := ReadCandidate(path, 1024)
	if err != nil {
		t.Fatalf("ReadCandidate: %v", err)
	}
	if c.Size != 2048 || c.Content != nil {
		t.Fatalf("candidate = size %d, content %d bytes", c.Size, len(c.Content))
	}
	if _, err := New(Config{MaxBytes: 1024}, nil).SelectFile(c); common.KindOf(err) != common.KindFileTooLarge {
		t.Fatalf("want FILE_TOO_LARGE, got %v", err)
	}
}

func waitPreview(t *testing.T, task *PreviewTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("preview did not finish")
	}
}

func TestPreviewImageProducesScaledDataURL(t *testing.T) {
	raw := RawFile{Name: "r.png", MIMEType: constants.MIMEPNG, Content: pngBytes(t, 640, 320)}
	task := StartPreview(context.Background(), raw, nil)
	waitPreview(t, task)
	url, ok := task.Result()
	if !ok || !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("preview = %q, %v", url, ok)
	}
}

// withDimensions rewrites the IHDR width and height of an encoded PNG.
func withDimensions(t *testing.T, b []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(b)
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected png layout")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestPreviewSkipsOversizedDimensions(t *testing.T) {
	huge := withDimensions(t, pngBytes(t, 8, 8), 60000, 60000)
	if _, err := renderPreview(context.Background(), huge); !errors.Is(err, errPreviewTooLarge) {
		t.Fatalf("err = %v, want errPreviewTooLarge", err)
	}

	task := StartPreview(context.Background(), RawFile{Name: "huge.png", MIMEType: constants.MIMEPNG, Content: huge}, nil)
	waitPreview(t, task)
	if _, ok := task.Result(); ok {
		t.Fatal("oversized image should have no preview")
	}
}

func TestPreviewPDFHasNone(t *testing.T) {
	task := StartPreview(context.Background(), RawFile{MIMEType: constants.MIMEPDF, Content: []byte("%PDF")}, nil)
	waitPreview(t, task)
	if _, ok := task.Result(); ok {
		t.Fatal("pdf should have no preview")
	}
}

func TestPreviewUndecodableDegradesToNone(t *testing.T) {
	task := StartPreview(context.Background(), RawFile{MIMEType: constants.MIMEJPEG, Content: []byte("heic bytes")}, nil)
	waitPreview(t, task)
	if _, ok := task.Result(); ok {
		t.Fatal("undecodable image should have no preview")
	}
}

func TestPreviewCancelledHasNone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task := StartPreview(ctx, RawFile{MIMEType: constants.MIMEPNG, Content: pngBytes(t, 8, 8)}, nil)
	waitPreview(t, task)
	if _, ok := task.Result(); ok {
		t.Fatal("cancelled preview should have no result")
	}
}

func TestThumbSize(t *testing.T) {
	cases := []struct{ w, h, ww, wh int }{
		{100, 50, 100, 50},
		{640, 320, 320, 160},
		{320, 1280, 80, 320},
		{5000, 1, 320, 1},
	}
	for _, tc := range cases {
		if w, h := thumbSize(tc.w, tc.h, 320); w != tc.ww || h != tc.wh {
			t.Errorf("thumbSize(%d,%d) = %d,%d want %d,%d", tc.w, tc.h, w, h, tc.ww, tc.wh)
		}
	}
}
