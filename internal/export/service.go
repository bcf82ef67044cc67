package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
	"github.com/joseph-ayodele/expense-docs/internal/repository"
)

const sheet = "Documentos"

// Service produces XLSX bytes for a request's stored documents.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportSolicitudXLSX returns a workbook with one row per stored document and a total row.
func (s *Service) ExportSolicitudXLSX(ctx context.Context, solicitudID string) ([]byte, error) {
	start := time.Now()
	docs, err := s.docs.ListBySolicitud(ctx, solicitudID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	buf, err := Workbook(docs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"solicitud_id", solicitudID,
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

var headers = []string{
	"Número de Operación",
	"Tipo de Documento",
	"Número de Documento",
	"Fecha",
	"RUC",
	"Razón Social",
	"Total",
	"Archivo",
	"Página",
}

// Workbook renders docs as XLSX.
func Workbook(docs []entity.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, d.NumeroOperacion)
		write(2, label(d.TipoDocumento))
		write(3, d.NumeroDocumento)
		write(4, deref(d.Fecha))
		write(5, deref(d.RUC))
		write(6, truncate(d.RazonSocial, 140))
		write(7, float64(d.Total))
		write(8, d.NombreArchivo)
		write(9, d.Pagina)
		row++
	}

	if len(docs) > 0 {
		labelCell, _ := excelize.CoordinatesToCellName(6, row)
		totalCell, _ := excelize.CoordinatesToCellName(7, row)
		_ = f.SetCellValue(sheet, labelCell, "Total")
		_ = f.SetCellFormula(sheet, totalCell, fmt.Sprintf("SUM(G2:G%d)", row-1))
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 20) // operation
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "E", 14)
	_ = f.SetColWidth(sheet, "F", "F", 40) // razon social
	_ = f.SetColWidth(sheet, "G", "G", 12)
	_ = f.SetColWidth(sheet, "H", "H", 36) // file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func label(tipo string) string {
	if dt, ok := constants.ParseDocumentType(tipo); ok {
		return dt.Label()
	}
	return tipo
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
