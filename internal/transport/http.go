package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-docs/internal/common"
)

// FilePart is one file attached to a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// Field is a plain multipart form value. Order is preserved.
type Field struct {
	Name  string
	Value string
}

// Response is what came back from the server. Status is 0 when nothing did.
type Response struct {
	Status int
	Body   []byte
	ReqID  string
}

// StatusOK reports a 2xx status.
func (r Response) StatusOK() bool { return r.Status/100 == 2 }

// SendMultipart posts fields and files to url. A non-nil error means the exchange itself
// failed (no response, or the body could not be read); HTTP error statuses are returned
// in Response for the caller to classify.
func SendMultipart(ctx context.Context, client *http.Client, url string, fields []Field, files []FilePart, logger *slog.Logger) (Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := requestID(ctx)
	out := Response{ReqID: reqID}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			logger.Error("http.encode_error", "req_id", reqID, "field", f.Name, "error", err)
			return out, fmt.Errorf("encode field %s: %w", f.Name, err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fileDisposition(f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		pw, err := mw.CreatePart(h)
		if err != nil {
			logger.Error("http.encode_error", "req_id", reqID, "field", f.Field, "error", err)
			return out, fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := pw.Write(f.Content); err != nil {
			return out, fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		logger.Error("http.build_request_error", "req_id", reqID, "error", err)
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(client, req, out, logger)
}

// Get issues a GET to url and returns the raw response.
func Get(ctx context.Context, client *http.Client, url string, logger *slog.Logger) (Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	out := Response{ReqID: requestID(ctx)}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Error("http.build_request_error", "req_id", out.ReqID, "error", err)
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return do(client, req, out, logger)
}

func do(client *http.Client, req *http.Request, out Response, logger *slog.Logger) (Response, error) {
	start := time.Now()
	req.Header.Set("X-Request-ID", out.ReqID)

	logger.Info("http.request",
		"req_id", out.ReqID,
		"method", req.Method,
		"url", req.URL.String(),
		"content_length", req.ContentLength,
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("http.send_error", "req_id", out.ReqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return out, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("http.response_body_close_error", "req_id", out.ReqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("http.read_error", "req_id", out.ReqID, "status", resp.StatusCode, "error", err)
		return out, fmt.Errorf("%w: read body: %w", common.ErrTransport, err)
	}
	out.Status = resp.StatusCode
	out.Body = raw

	logger.Info("http.response",
		"req_id", out.ReqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func requestID(ctx context.Context) string {
	if id := common.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileDisposition renders a form-data header for a file part, as multipart.CreateFormFile does.
func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}
