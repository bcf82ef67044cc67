package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/expense-docs/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgMissingSolicitud)
		return
	}

	xlsx, err := s.exporter.ExportSolicitudXLSX(r.Context(), id)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "req_id", common.RequestIDFromContext(r.Context()), "solicitud_id", id, "err", err)
		writeError(w, common.HTTPStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "solicitud-"+id+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(xlsx)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
