package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, Timeout: timeout}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

var sampleFile = intake.RawFile{
	Name:     "boleta.jpg",
	MIMEType: constants.MIMEJPEG,
	Size:     4,
	Content:  []byte{0xff, 0xd8, 0xff, 0xe0},
}

func TestExtractSendsMultipartFields(t *testing.T) {
	var gotPath, gotTipo, gotSolicitud, gotName, gotCT, gotReqID string
	var gotContent []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-ID")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTipo = r.FormValue(FieldTipoDocumento)
		gotSolicitud = r.FormValue(FieldIDSolicitud)
		f, hdr, err := r.FormFile(FieldArchivo)
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotName = hdr.Filename
			gotCT = hdr.Header.Get("Content-Type")
			gotContent, _ = io.ReadAll(f)
			_ = f.Close()
		}
		jsonHandler(200, `{"resultados":[{"total":"1.00"}]}`)(w, r)
	}))
	defer srv.Close()

	ctx := common.WithRequestID(context.Background(), "req-123")
	if _, err := newTestClient(t, srv.URL+"/", time.Second).Extract(ctx, sampleFile, constants.Factura, "42"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gotPath != "/documentos/procesar/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotTipo != "factura" || gotSolicitud != "42" {
		t.Errorf("fields = %q/%q", gotTipo, gotSolicitud)
	}
	if gotName != "boleta.jpg" || gotCT != constants.MIMEJPEG || len(gotContent) != 4 {
		t.Errorf("file = %q %q %d bytes", gotName, gotCT, len(gotContent))
	}
	if gotReqID != "req-123" {
		t.Errorf("X-Request-ID = %q", gotReqID)
	}
}

func TestExtractTakesFirstResult(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"resultados":[
		{"total":"150.75","ruc":"20123456789","fecha":"2025-08-14"},
		{"total":"1.00"}
	]}`))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v, _ := res.Total.Get(); v != "150.75" {
		t.Fatalf("total = %v", res.Total)
	}
	if v, _ := res.RUC.Get(); v != "20123456789" {
		t.Fatalf("ruc = %v", res.RUC)
	}
	if res.Empty {
		t.Fatal("result marked empty")
	}
}

func TestExtractEmptyOrAbsentResultsIsNotAnError(t *testing.T) {
	for _, body := range []string{`{"resultados":[]}`, `{}`, `{"resultados":null}`, `{"resultado":[]}`} {
		srv := httptest.NewServer(jsonHandler(200, body))
		res, err := newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
		srv.Close()
		if err != nil {
			t.Fatalf("body %s: Extract: %v", body, err)
		}
		if !res.Empty {
			t.Fatalf("body %s: want empty result", body)
		}
	}
}

func TestExtractAcceptsSingularResultado(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"resultado":[{"total":88.5,"razon_social":"ACME"}]}`))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Otros, "1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v, _ := res.Total.Get(); v != "88.5" {
		t.Fatalf("total = %v", res.Total)
	}
	if v, _ := res.RazonSocial.Get(); v != "ACME" {
		t.Fatalf("razon_social = %v", res.RazonSocial)
	}
}

func TestExtractServiceErrorIsVerbatim(t *testing.T) {
	for _, status := range []int{200, 400, 500} {
		srv := httptest.NewServer(jsonHandler(status, `{"error":"No se envió ningún archivo"}`))
		_, err := newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
		srv.Close()
		if got := common.KindOf(err); got != common.KindServiceError {
			t.Fatalf("status %d: kind = %q (%v)", status, got, err)
		}
		if got := common.MessageOf(err); got != "No se envió ningún archivo" {
			t.Fatalf("status %d: message = %q", status, got)
		}
	}
}

func TestExtractProcessingFailed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"500 without payload": jsonHandler(500, `{}`),
		"html body":           jsonHandler(502, `<html>bad gateway</html>`),
		"wrong shape":         jsonHandler(200, `{"resultados":"nope"}`),
		"non-object entry":    jsonHandler(200, `{"resultados":[1,2]}`),
	}
	for name, h := range cases {
		srv := httptest.NewServer(h)
		_, err := newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
		srv.Close()
		if got := common.KindOf(err); got != common.KindProcessingFailed {
			t.Errorf("%s: kind = %q (%v)", name, got, err)
		}
		if got := common.MessageOf(err); got != common.MsgProcessingFailed {
			t.Errorf("%s: message = %q", name, got)
		}
	}
}

func TestExtractTimeoutIsNoServerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 50*time.Millisecond).Extract(context.Background(), sampleFile, constants.Boleta, "1")
	if got := common.KindOf(err); got != common.KindNoServerResponse {
		t.Fatalf("kind = %q (%v)", got, err)
	}
}

func TestExtractUnreachableIsNoServerResponse(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{}`))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
	if got := common.KindOf(err); got != common.KindNoServerResponse {
		t.Fatalf("kind = %q (%v)", got, err)
	}
}

func TestExtractDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		jsonHandler(500, `{}`)(w, r)
	}))
	defer srv.Close()

	_, _ = newTestClient(t, srv.URL, time.Second).Extract(context.Background(), sampleFile, constants.Boleta, "1")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
