package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
	"github.com/joseph-ayodele/expense-docs/internal/transport"
)

const procesarPath = "/documentos/procesar/"

// Multipart field names expected by the OCR service.
const (
	FieldArchivo       = "archivo"
	FieldTipoDocumento = "tipo_documento"
	FieldIDSolicitud   = "id_solicitud"
)

// Config for the OCR gateway.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the remote OCR extraction service. It never retries.
type Client struct {
	cfg    Config
	http   *http.Client
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	schema, err := compileSchema(responseSchema())
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		logger: logger,
	}, nil
}

type procesarResponse struct {
	Resultados []map[string]any `json:"resultados"`
	Resultado  json.RawMessage  `json:"resultado"`
	Error      *string          `json:"error"`
}

// Extract sends one file for extraction and returns the first result.
//
// Outcomes:
//   - results: the first entry, extra entries are ignored
//   - no results: extract.EmptyResult(), nil error
//   - service error payload: SERVICE_ERROR with the message verbatim
//   - anything else from the server: PROCESSING_FAILED
//   - no response within the timeout: NO_SERVER_RESPONSE
func (c *Client) Extract(ctx context.Context, raw intake.RawFile, docType constants.DocumentType, solicitudID string) (extract.Result, error) {
	start := time.Now()
	url := c.cfg.BaseURL + procesarPath

	fields := []transport.Field{
		{Name: FieldTipoDocumento, Value: string(docType)},
		{Name: FieldIDSolicitud, Value: solicitudID},
	}
	files := []transport.FilePart{{
		Field:       FieldArchivo,
		Filename:    raw.Name,
		ContentType: raw.MIMEType,
		Content:     raw.Content,
	}}

	resp, err := transport.SendMultipart(ctx, c.http, url, fields, files, c.logger)
	if err != nil {
		c.logger.Error("gateway.extract.no_response",
			"req_id", resp.ReqID, "name", raw.Name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.Result{}, common.NewAppError(common.KindNoServerResponse, common.MsgNoServerResponse, err)
	}

	res, err := c.decode(resp)
	if err != nil {
		c.logger.Warn("gateway.extract.failed",
			"req_id", resp.ReqID,
			"status", resp.Status,
			"kind", common.KindOf(err),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Result{}, err
	}

	c.logger.Info("gateway.extract.ok",
		"req_id", resp.ReqID,
		"name", raw.Name,
		"tipo_documento", docType,
		"empty", res.Empty,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) decode(resp transport.Response) (extract.Result, error) {
	failed := func(cause error) error {
		return common.NewAppError(common.KindProcessingFailed, common.MsgProcessingFailed, cause)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return extract.Result{}, failed(fmt.Errorf("status %d: decode body: %w", resp.Status, err))
	}
	if err := c.schema.Validate(generic); err != nil {
		return extract.Result{}, failed(fmt.Errorf("status %d: unexpected response shape: %w", resp.Status, err))
	}

	var body procesarResponse
	dec = json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return extract.Result{}, failed(fmt.Errorf("status %d: decode body: %w", resp.Status, err))
	}

	if body.Error != nil && strings.TrimSpace(*body.Error) != "" {
		return extract.Result{}, common.NewAppError(common.KindServiceError, *body.Error, nil)
	}
	if !resp.StatusOK() {
		return extract.Result{}, failed(fmt.Errorf("non-2xx status: %d", resp.Status))
	}

	results := body.Resultados
	if len(results) == 0 {
		results = singularResults(body.Resultado)
	}
	if len(results) == 0 {
		return extract.EmptyResult(), nil
	}
	if len(results) > 1 {
		c.logger.Warn("gateway.extract.multiple_results", "req_id", resp.ReqID, "count", len(results))
	}
	return extract.FromMap(results[0]), nil
}

func singularResults(raw json.RawMessage) []map[string]any {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(t))
	dec.UseNumber()
	if t[0] == '[' {
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil
		}
		return list
	}
	var one map[string]any
	if err := dec.Decode(&one); err != nil {
		return nil
	}
	return []map[string]any{one}
}
