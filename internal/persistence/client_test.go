package persistence

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/assembly"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
)

func sampleDoc(t *testing.T) assembly.ValidatedDocument {
	t.Helper()
	file := intake.RawFile{Name: "boleta.jpg", MIMEType: constants.MIMEJPEG, Size: 3, Content: []byte{1, 2, 3}}
	doc, err := assembly.Assemble(assembly.Input{
		File:        &file,
		Type:        constants.Boleta,
		SolicitudID: "15",
		Fields: extract.Validate(extract.Result{
			Total: extract.Present("150,75"),
			RUC:   extract.Present("20123456789"),
		}, ""),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return doc
}

func TestSavePostsDocumentAndFile(t *testing.T) {
	id := uuid.New()
	var gotSolicitud string
	var gotDocs []entity.DocumentInput
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documentos/guardar/" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
		}
		gotSolicitud = r.FormValue(FieldSolicitudID)
		if err := json.Unmarshal([]byte(r.FormValue(FieldDocumentos)), &gotDocs); err != nil {
			t.Errorf("documentos: %v", err)
		}
		if f, _, err := r.FormFile(FieldArchivos); err == nil {
			gotFile, _ = io.ReadAll(f)
			_ = f.Close()
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(entity.SaveResponse{
			Mensaje:    "Documentos guardados correctamente",
			Documentos: []entity.Document{{ID: id, NumeroOperacion: "DOC-20250814-0001", Total: 150.75}},
		})
	}))
	defer srv.Close()

	receipt, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, nil).Save(context.Background(), sampleDoc(t))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if gotSolicitud != "15" {
		t.Errorf("solicitud = %q", gotSolicitud)
	}
	if len(gotDocs) != 1 || gotDocs[0].Total != "150.75" || gotDocs[0].RUC != "20123456789" || gotDocs[0].TipoDocumento != "boleta" || gotDocs[0].Fecha != "" {
		t.Errorf("documentos = %+v", gotDocs)
	}
	if len(gotFile) != 3 {
		t.Errorf("file bytes = %d", len(gotFile))
	}
	if len(receipt.IDs) != 1 || receipt.IDs[0] != id.String() || receipt.NumerosOperacion[0] != "DOC-20250814-0001" {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestSaveSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Falta el ID de la solicitud."}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Save(context.Background(), sampleDoc(t))
	if common.KindOf(err) != common.KindServiceError || common.MessageOf(err) != "Falta el ID de la solicitud." {
		t.Fatalf("err = %v", err)
	}
}

func TestSaveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil).Save(context.Background(), sampleDoc(t))
	if common.KindOf(err) != common.KindNoServerResponse {
		t.Fatalf("err = %v", err)
	}
}

func TestListBySolicitud(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documentos/solicitud/15/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"`+uuid.NewString()+`","solicitud":"15","numero_operacion":"DOC-20250814-0001","tipo_documento":"factura","fecha":null,"ruc":"20123456789","total":"90.00","pagina":1}]`)
	}))
	defer srv.Close()

	docs, err := NewClient(Config{BaseURL: srv.URL}, nil).ListBySolicitud(context.Background(), "15")
	if err != nil {
		t.Fatalf("ListBySolicitud: %v", err)
	}
	if len(docs) != 1 || docs[0].Total != 90 || docs[0].Fecha != nil || docs[0].RUC == nil {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestExportXLSX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documentos/solicitud/a%2Fb/export.xlsx" && r.URL.RawPath != "/documentos/solicitud/a%2Fb/export.xlsx" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"not found"}`)
			return
		}
		_, _ = w.Write([]byte("PK\x03\x04"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	b, err := c.ExportXLSX(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	if string(b) != "PK\x03\x04" {
		t.Fatalf("body = %q", b)
	}

	_, err = c.ExportXLSX(context.Background(), "missing")
	if common.KindOf(err) != common.KindServiceError || common.MessageOf(err) != "not found" {
		t.Fatalf("err = %v", err)
	}
}
