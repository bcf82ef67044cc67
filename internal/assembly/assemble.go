package assembly

import (
	"context"
	"strconv"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
)

// ValidatedDocument is the pipeline's output. Fields are unexported so the record
// cannot change after Assemble; the file content must be treated as read-only.
type ValidatedDocument struct {
	file            intake.RawFile
	docType         constants.DocumentType
	solicitudID     string
	total           float64
	ruc             string
	hasRUC          bool
	fecha           string
	hasFecha        bool
	razonSocial     string
	numeroDocumento string
}

func (d ValidatedDocument) File() intake.RawFile                 { return d.file }
func (d ValidatedDocument) DocumentType() constants.DocumentType { return d.docType }
func (d ValidatedDocument) SolicitudID() string                  { return d.solicitudID }
func (d ValidatedDocument) Total() float64                       { return d.total }
func (d ValidatedDocument) RUC() (string, bool)                  { return d.ruc, d.hasRUC }
func (d ValidatedDocument) Fecha() (string, bool)                { return d.fecha, d.hasFecha }
func (d ValidatedDocument) RazonSocial() string                  { return d.razonSocial }
func (d ValidatedDocument) NumeroDocumento() string              { return d.numeroDocumento }

// TotalString renders the total with two decimals, as stored.
func (d ValidatedDocument) TotalString() string {
	return strconv.FormatFloat(d.total, 'f', 2, 64)
}

// Input is everything Assemble needs from a session.
type Input struct {
	File        *intake.RawFile
	Type        constants.DocumentType
	SolicitudID string
	Fields      extract.Fields
}

// Assemble builds a ValidatedDocument. A missing total is MISSING_TOTAL; the caller
// goes back to correction.
func Assemble(in Input) (ValidatedDocument, error) {
	if in.File == nil {
		return ValidatedDocument{}, common.NewAppError(common.KindInvalidState, "no file selected", common.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return ValidatedDocument{}, common.NewAppError(common.KindInvalidState, "document type is required", common.ErrInvalidInput)
	}
	if !in.Fields.HasTotal() {
		return ValidatedDocument{}, common.NewAppError(common.KindMissingTotal, common.MsgMissingTotal, common.ErrValidation)
	}

	doc := ValidatedDocument{
		file:            *in.File,
		docType:         in.Type,
		solicitudID:     in.SolicitudID,
		total:           *in.Fields.Total,
		razonSocial:     in.Fields.RazonSocial,
		numeroDocumento: in.Fields.NumeroDocumento,
	}
	if in.Fields.RUC != nil {
		doc.ruc, doc.hasRUC = *in.Fields.RUC, true
	}
	if in.Fields.Fecha != nil {
		doc.fecha, doc.hasFecha = *in.Fields.Fecha, true
	}
	return doc, nil
}

// Receipt is what the persistence collaborator hands back.
type Receipt struct {
	IDs              []string
	NumerosOperacion []string
}

// Handoff takes ownership of an assembled document.
type Handoff interface {
	Save(ctx context.Context, doc ValidatedDocument) (Receipt, error)
}
