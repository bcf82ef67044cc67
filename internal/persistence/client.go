package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/expense-docs/internal/assembly"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
	"github.com/joseph-ayodele/expense-docs/internal/transport"
)

const (
	guardarPath   = "/documentos/guardar/"
	solicitudPath = "/documentos/solicitud/"
)

// Multipart field names of the save endpoint.
const (
	FieldSolicitudID = "solicitud_id"
	FieldDocumentos  = "documentos"
	FieldArchivos    = "archivos"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the persistence service. It implements assembly.Handoff.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ assembly.Handoff = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// ToInput renders a validated document the way the save endpoint expects it.
func ToInput(doc assembly.ValidatedDocument) entity.DocumentInput {
	in := entity.DocumentInput{
		TipoDocumento:   string(doc.DocumentType()),
		NumeroDocumento: doc.NumeroDocumento(),
		RazonSocial:     doc.RazonSocial(),
		Total:           doc.TotalString(),
	}
	if v, ok := doc.RUC(); ok {
		in.RUC = v
	}
	if v, ok := doc.Fecha(); ok {
		in.Fecha = v
	}
	return in
}

// Save uploads the document with its source file.
func (c *Client) Save(ctx context.Context, doc assembly.ValidatedDocument) (assembly.Receipt, error) {
	start := time.Now()
	payload, err := json.Marshal([]entity.DocumentInput{ToInput(doc)})
	if err != nil {
		return assembly.Receipt{}, fmt.Errorf("encode documentos: %w", err)
	}

	file := doc.File()
	resp, err := transport.SendMultipart(ctx, c.http, c.cfg.BaseURL+guardarPath,
		[]transport.Field{
			{Name: FieldSolicitudID, Value: doc.SolicitudID()},
			{Name: FieldDocumentos, Value: string(payload)},
		},
		[]transport.FilePart{{
			Field:       FieldArchivos,
			Filename:    file.Name,
			ContentType: file.MIMEType,
			Content:     file.Content,
		}},
		c.logger,
	)
	if err != nil {
		return assembly.Receipt{}, common.NewAppError(common.KindNoServerResponse, common.MsgNoServerResponse, err)
	}
	if err := responseError(resp); err != nil {
		c.logger.Warn("persistence.save.failed", "req_id", resp.ReqID, "status", resp.Status, "error", err)
		return assembly.Receipt{}, err
	}

	var body entity.SaveResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return assembly.Receipt{}, common.NewAppError(common.KindProcessingFailed, common.MsgProcessingFailed, err)
	}
	var receipt assembly.Receipt
	for _, d := range body.Documentos {
		receipt.IDs = append(receipt.IDs, d.ID.String())
		receipt.NumerosOperacion = append(receipt.NumerosOperacion, d.NumeroOperacion)
	}
	c.logger.Info("persistence.save.ok",
		"req_id", resp.ReqID,
		"solicitud_id", doc.SolicitudID(),
		"rows", len(body.Documentos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return receipt, nil
}

// ListBySolicitud returns the documents already saved for a request.
func (c *Client) ListBySolicitud(ctx context.Context, solicitudID string) ([]entity.Document, error) {
	u := c.cfg.BaseURL + solicitudPath + url.PathEscape(solicitudID) + "/"
	resp, err := transport.Get(ctx, c.http, u, c.logger)
	if err != nil {
		return nil, common.NewAppError(common.KindNoServerResponse, common.MsgNoServerResponse, err)
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	var docs []entity.Document
	if err := json.Unmarshal(resp.Body, &docs); err != nil {
		return nil, common.NewAppError(common.KindProcessingFailed, common.MsgProcessingFailed, err)
	}
	return docs, nil
}

// ExportXLSX downloads the request's documents as a workbook.
func (c *Client) ExportXLSX(ctx context.Context, solicitudID string) ([]byte, error) {
	u := c.cfg.BaseURL + solicitudPath + url.PathEscape(solicitudID) + "/export.xlsx"
	resp, err := transport.Get(ctx, c.http, u, c.logger)
	if err != nil {
		return nil, common.NewAppError(common.KindNoServerResponse, common.MsgNoServerResponse, err)
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func responseError(resp transport.Response) error {
	if resp.StatusOK() {
		return nil
	}
	var e entity.ErrorResponse
	if err := json.Unmarshal(resp.Body, &e); err == nil && strings.TrimSpace(e.Error) != "" {
		return common.NewAppError(common.KindServiceError, e.Error, nil)
	}
	return common.NewAppError(common.KindProcessingFailed, common.MsgProcessingFailed, fmt.Errorf("non-2xx status: %d", resp.Status))
}
