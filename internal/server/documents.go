package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
	"github.com/joseph-ayodele/expense-docs/internal/storage"
)

// Form field names and the fixed answers of the save endpoint.
const (
	fieldSolicitudID    = "solicitud_id"
	fieldSolicitudAlias = "solicitud"
	fieldDocumentos     = "documentos"
	fieldArchivos       = "archivos"

	msgSaved            = "Documentos guardados correctamente"
	msgMissingSolicitud = "Falta el ID de la solicitud."
	msgBadSolicitud     = "El ID de la solicitud no es válido."
	msgMissingDocs      = "No se enviaron datos de documentos"
	msgBadDocs          = "El campo documentos no es un JSON válido"
	msgSaveFailed       = "No se pudo guardar los documentos: "

	noFileName = "ND"
)

func (s *Server) handleGuardar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	reqID := common.RequestIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "La solicitud supera el tamaño permitido")
			return
		}
		s.logger.Warn("server.guardar.bad_form", "req_id", reqID, "error", err)
		writeError(w, http.StatusBadRequest, "Formulario inválido")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	solicitudID := strings.TrimSpace(r.FormValue(fieldSolicitudID))
	if solicitudID == "" {
		solicitudID = strings.TrimSpace(r.FormValue(fieldSolicitudAlias))
	}
	if solicitudID == "" {
		writeError(w, http.StatusBadRequest, msgMissingSolicitud)
		return
	}
	if !validSolicitudID(solicitudID) {
		s.logger.Warn("server.guardar.rejected", "req_id", reqID, "reason", "bad_solicitud_id", "solicitud_id", solicitudID)
		writeError(w, http.StatusBadRequest, msgBadSolicitud)
		return
	}

	raw := strings.TrimSpace(r.FormValue(fieldDocumentos))
	if raw == "" {
		writeError(w, http.StatusBadRequest, msgMissingDocs)
		return
	}
	var inputs []entity.DocumentInput
	if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
		writeError(w, http.StatusBadRequest, msgBadDocs)
		return
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, msgMissingDocs)
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File[fieldArchivos]
	}

	rows, err := s.buildRows(common.WithSolicitudID(ctx, solicitudID), solicitudID, inputs, files)
	if err != nil {
		s.failSave(w, reqID, solicitudID, err)
		return
	}
	saved, err := s.docs.CreateMany(ctx, rows)
	if err != nil {
		s.failSave(w, reqID, solicitudID, err)
		return
	}

	s.logger.Info("server.guardar.ok",
		"req_id", reqID,
		"solicitud_id", solicitudID,
		"documentos", len(inputs),
		"archivos", len(files),
		"rows", len(saved),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusCreated, entity.SaveResponse{Mensaje: msgSaved, Documentos: saved})
}

// validSolicitudID rejects ids that could act as a path inside the object store.
func validSolicitudID(id string) bool {
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func (s *Server) failSave(w http.ResponseWriter, reqID, solicitudID string, err error) {
	status := common.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("server.guardar.failed", "req_id", reqID, "solicitud_id", solicitudID, "error", err)
		writeError(w, status, msgSaveFailed+err.Error())
		return
	}
	s.logger.Warn("server.guardar.rejected", "req_id", reqID, "solicitud_id", solicitudID, "status", status, "error", err)
	writeError(w, status, clientMessage(err))
}

// clientMessage is the text returned for a rejected request.
func clientMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if prefix, _, ok := strings.Cut(err.Error(), ": "+appErr.Code); ok && prefix != "" {
			msg = prefix + ": " + msg
		}
		return msg
	}
	return err.Error()
}

// buildRows validates every document before touching the object store, then
// uploads each document's file and expands PDFs to one row per page.
func (s *Server) buildRows(ctx context.Context, solicitudID string, inputs []entity.DocumentInput, files []*multipart.FileHeader) ([]entity.Document, error) {
	bases := make([]entity.Document, len(inputs))
	for i, in := range inputs {
		doc, err := documentFromInput(i, solicitudID, in)
		if err != nil {
			return nil, err
		}
		bases[i] = doc
	}

	var rows []entity.Document
	for i, base := range bases {
		if i >= len(files) {
			base.NombreArchivo = noFileName
			base.Pagina = 1
			rows = append(rows, base)
			continue
		}

		raw, err := s.readUpload(files[i])
		if err != nil {
			return nil, fmt.Errorf("archivo %d: %w", i+1, err)
		}
		key := storage.ObjectKey(solicitudID, raw.SHA256, constants.ExtForMIME(raw.MIMEType))
		if err := s.store.Put(ctx, key, raw.Content, raw.MIMEType); err != nil {
			return nil, fmt.Errorf("%w: store %s: %w", common.ErrInternal, raw.Name, err)
		}

		pages := 1
		if raw.IsPDF() {
			n, err := pageCount(raw.Content)
			if err != nil {
				s.logger.Warn("server.guardar.page_count_failed", "req_id", common.RequestIDFromContext(ctx), "file", raw.Name, "error", err)
			} else {
				pages = n
			}
		}
		for p := 1; p <= pages; p++ {
			row := base
			row.NombreArchivo = fmt.Sprintf("%s_p%d", raw.Name, p)
			row.ArchivoKey = key
			row.MIMEType = raw.MIMEType
			row.SHA256 = raw.SHA256
			row.Pagina = p
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func documentFromInput(i int, solicitudID string, in entity.DocumentInput) (entity.Document, error) {
	ruc := strings.TrimSpace(in.RUC)
	fecha := strings.TrimSpace(in.Fecha)

	v := common.NewValidator()
	v.Field("total", in.Total, common.Required, common.NonNegativeAmount).
		Field("tipo_documento", in.TipoDocumento, common.Required, common.DocumentType).
		Field("ruc", ruc, common.OptionalRUC).
		Field("fecha", fecha, common.OptionalISODate).
		Field("razon_social", in.RazonSocial, common.MaxLength(255)).
		Field("numero_documento", in.NumeroDocumento, common.MaxLength(64))
	if err := v.Error(); err != nil {
		return entity.Document{}, fmt.Errorf("documento %d: %w", i+1, err)
	}

	total, _ := common.ParseAmount(in.Total)
	dt, _ := constants.ParseDocumentType(in.TipoDocumento)
	doc := entity.Document{
		SolicitudID:     solicitudID,
		TipoDocumento:   string(dt),
		NumeroDocumento: strings.TrimSpace(in.NumeroDocumento),
		RazonSocial:     strings.TrimSpace(in.RazonSocial),
		Total:           entity.Amount(total),
	}
	if ruc != "" {
		doc.RUC = &ruc
	}
	if fecha != "" {
		doc.Fecha = &fecha
	}
	return doc, nil
}

func (s *Server) readUpload(fh *multipart.FileHeader) (intake.RawFile, error) {
	declared := fh.Header.Get("Content-Type")
	if strings.EqualFold(declared, "application/octet-stream") {
		declared = ""
	}
	c := intake.Candidate{Name: fh.Filename, MIMEType: declared, Size: fh.Size}
	limit := s.intake.MaxBytes()
	if fh.Size <= limit {
		f, err := fh.Open()
		if err != nil {
			return intake.RawFile{}, fmt.Errorf("%w: open upload: %w", common.ErrInternal, err)
		}
		defer func() { _ = f.Close() }()
		content, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return intake.RawFile{}, fmt.Errorf("%w: read upload: %w", common.ErrInternal, err)
		}
		c.Content = content
		c.Size = int64(len(content))
	}
	return s.intake.SelectFile(c)
}

func (s *Server) handleListar(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgMissingSolicitud)
		return
	}
	docs, err := s.docs.ListBySolicitud(r.Context(), id)
	if err != nil {
		s.logger.Error("server.listar.failed", "req_id", common.RequestIDFromContext(r.Context()), "solicitud_id", id, "error", err)
		writeError(w, common.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
