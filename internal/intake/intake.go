package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
)

// Candidate is a file the user picked, before any checks.
type Candidate struct {
	Name     string
	MIMEType string // as reported by the picker or capture device
	Size     int64  // 0 means len(Content)
	Content  []byte
}

// RawFile is an accepted selection. Immutable once built.
type RawFile struct {
	Name         string
	MIMEType     string // normalized, always in constants.AllowedMIMETypes
	DeclaredType string
	Size         int64
	Content      []byte
	SHA256       string
}

func (r RawFile) IsPDF() bool { return r.MIMEType == constants.MIMEPDF }

// Config controls file acceptance. HandheldDevice is injected by the caller, never sniffed here.
type Config struct {
	MaxBytes       int64
	HandheldDevice bool
}

type Intake struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = constants.MaxUploadBytes
	}
	return &Intake{cfg: cfg, logger: logger}
}

func (i *Intake) MaxBytes() int64 { return i.cfg.MaxBytes }

// AcceptHint is what a file input should advertise on this device.
func (i *Intake) AcceptHint() string {
	if i.cfg.HandheldDevice {
		return "image/*;capture=camera"
	}
	return strings.Join([]string{constants.MIMEJPEG, constants.MIMEPNG, constants.MIMEPDF}, ",")
}

// SelectFile validates a candidate. Size is checked before type, so an oversized file
// is FILE_TOO_LARGE whatever it claims to be. The larger of the reported size and the
// content length counts.
func (i *Intake) SelectFile(c Candidate) (RawFile, error) {
	size := max(c.Size, int64(len(c.Content)))
	if size > i.cfg.MaxBytes {
		i.logger.Warn("intake.rejected", "name", c.Name, "reason", common.KindFileTooLarge, "size", size, "max", i.cfg.MaxBytes)
		return RawFile{}, common.NewAppError(common.KindFileTooLarge,
			fmt.Sprintf("El archivo supera el límite de %d MB", i.cfg.MaxBytes/(1024*1024)), common.ErrInvalidInput)
	}

	mt := NormalizeMIME(c.MIMEType, c.Name, c.Content)
	if _, ok := constants.AllowedMIMETypes[mt]; !ok {
		i.logger.Warn("intake.rejected", "name", c.Name, "reason", common.KindUnsupportedType, "declared", c.MIMEType, "normalized", mt)
		return RawFile{}, common.NewAppError(common.KindUnsupportedType,
			"Formato no soportado: solo se aceptan JPG, PNG o PDF", common.ErrInvalidInput)
	}

	sum := sha256.Sum256(c.Content)
	raw := RawFile{
		Name:         c.Name,
		MIMEType:     mt,
		DeclaredType: c.MIMEType,
		Size:         size,
		Content:      bytes.Clone(c.Content),
		SHA256:       hex.EncodeToString(sum[:]),
	}
	i.logger.Info("intake.accepted", "name", raw.Name, "mime", raw.MIMEType, "declared", raw.DeclaredType, "size", raw.Size)
	return raw, nil
}

// NormalizeMIME lowercases the declared type, drops parameters and maps the HEIC/HEIF
// capture quirk to image/jpeg. With no declared type it sniffs content, then the extension.
func NormalizeMIME(declared, name string, content []byte) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			mt = parsed
		}
	}
	if mt == "" && len(content) > 0 {
		sniffed, _, _ := strings.Cut(http.DetectContentType(content), ";")
		if _, ok := constants.AllowedMIMETypes[sniffed]; ok {
			mt = sniffed
		}
	}
	if mt == "" {
		mt = constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(name))]
	}

	switch mt {
	case "image/heic", "image/heif":
		return constants.MIMEJPEG
	}
	return mt
}

// ReadCandidate builds a Candidate from a local path. Oversized files are not read;
// SelectFile rejects them on the reported size.
func ReadCandidate(path string, maxBytes int64) (Candidate, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Candidate{}, err
	}
	if st.IsDir() {
		return Candidate{}, fmt.Errorf("%s is a directory", path)
	}
	c := Candidate{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size:     st.Size(),
	}
	if maxBytes > 0 && st.Size() > maxBytes {
		return c, nil
	}
	c.Content, err = os.ReadFile(path)
	if err != nil {
		return Candidate{}, err
	}
	return c, nil
}
