package assembly

import (
	"testing"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
)

func TestAssembleRequiresTotal(t *testing.T) {
	file := intake.RawFile{Name: "a.pdf", MIMEType: constants.MIMEPDF}
	_, err := Assemble(Input{File: &file, Type: constants.Boleta, Fields: extract.Validate(extract.EmptyResult(), "")})
	if got := common.KindOf(err); got != common.KindMissingTotal {
		t.Fatalf("kind = %q (%v)", got, err)
	}
}

func TestAssembleCopiesValidatedFields(t *testing.T) {
	file := intake.RawFile{Name: "b.jpg", MIMEType: constants.MIMEJPEG, Content: []byte{1}}
	fields := extract.Validate(extract.Result{
		Total:           extract.Present("150.75"),
		RUC:             extract.Present("20123456789"),
		Fecha:           extract.Present("2025-08-14"),
		RazonSocial:     extract.Present("ACME SAC"),
		NumeroDocumento: extract.Present("F001-99"),
	}, "")

	doc, err := Assemble(Input{File: &file, Type: constants.Factura, SolicitudID: "7", Fields: fields})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.Total() != 150.75 || doc.TotalString() != "150.75" {
		t.Fatalf("total = %v / %s", doc.Total(), doc.TotalString())
	}
	if v, ok := doc.RUC(); !ok || v != "20123456789" {
		t.Fatalf("ruc = %q %v", v, ok)
	}
	if v, ok := doc.Fecha(); !ok || v != "2025-08-14" {
		t.Fatalf("fecha = %q %v", v, ok)
	}
	if doc.RazonSocial() != "ACME SAC" || doc.NumeroDocumento() != "F001-99" {
		t.Fatalf("free text = %q %q", doc.RazonSocial(), doc.NumeroDocumento())
	}
	if doc.DocumentType() != constants.Factura || doc.SolicitudID() != "7" || doc.File().Name != "b.jpg" {
		t.Fatalf("metadata = %v %q %q", doc.DocumentType(), doc.SolicitudID(), doc.File().Name)
	}

	// Later changes to the inputs do not reach the assembled record.
	*fields.RUC = "99999999999"
	file.Name = "changed"
	if v, _ := doc.RUC(); v != "20123456789" {
		t.Fatalf("ruc mutated to %q", v)
	}
	if doc.File().Name != "b.jpg" {
		t.Fatalf("file mutated to %q", doc.File().Name)
	}
}

func TestAssembleManualTotalOnly(t *testing.T) {
	file := intake.RawFile{Name: "c.pdf", MIMEType: constants.MIMEPDF}
	doc, err := Assemble(Input{File: &file, Type: constants.Otros, Fields: extract.Validate(extract.EmptyResult(), "90.00")})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.TotalString() != "90.00" {
		t.Fatalf("total = %s", doc.TotalString())
	}
	if _, ok := doc.RUC(); ok {
		t.Fatal("ruc should be absent")
	}
	if _, ok := doc.Fecha(); ok {
		t.Fatal("fecha should be absent")
	}
	if doc.RazonSocial() != "" || doc.NumeroDocumento() != "" {
		t.Fatal("free text should be empty")
	}
}

func TestAssembleRendersTotalWithTwoDecimals(t *testing.T) {
	file := intake.RawFile{Name: "c.pdf", MIMEType: constants.MIMEPDF}
	cases := map[string]string{
		"S/ 12,5":  "12.50",
		"150,75":   "150.75",
		"S/. 7":    "7.00",
		"1999.999": "2000.00",
	}
	for raw, want := range cases {
		fields := extract.Validate(extract.Result{Total: extract.Present(raw)}, "")
		doc, err := Assemble(Input{File: &file, Type: constants.Boleta, Fields: fields})
		if err != nil {
			t.Fatalf("%q: Assemble: %v", raw, err)
		}
		if got := doc.TotalString(); got != want {
			t.Errorf("%q: TotalString = %s, want %s", raw, got, want)
		}
	}
}

func TestAssembleRejectsMissingFileOrType(t *testing.T) {
	fields := extract.Validate(extract.Result{}, "1")
	if _, err := Assemble(Input{Type: constants.Boleta, Fields: fields}); common.KindOf(err) != common.KindInvalidState {
		t.Fatalf("no file: %v", err)
	}
	file := intake.RawFile{Name: "d.png"}
	if _, err := Assemble(Input{File: &file, Type: "ticket", Fields: fields}); common.KindOf(err) != common.KindInvalidState {
		t.Fatalf("bad type: %v", err)
	}
}
