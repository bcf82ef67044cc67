package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field is one extracted value: either present with its raw text, or absent.
type Field struct {
	value   string
	present bool
}

func Present(v string) Field { return Field{value: v, present: true} }

func Absent() Field { return Field{} }

func (f Field) Get() (string, bool) { return f.value, f.present }

func (f Field) IsPresent() bool { return f.present }

// OrEmpty returns the value, or "" when absent.
func (f Field) OrEmpty() string { return f.value }

func (f Field) String() string {
	if !f.present {
		return "<absent>"
	}
	return f.value
}

// Result is what the OCR service returned for one document. Never mutated after decoding.
type Result struct {
	Total           Field
	RUC             Field
	Fecha           Field
	RazonSocial     Field
	NumeroDocumento Field

	// Empty is set when the service answered with no result entries.
	Empty bool
}

// EmptyResult is the "could not read this document" outcome.
func EmptyResult() Result {
	return Result{Empty: true}
}

// Payload keys used by the OCR service.
const (
	KeyTotal           = "total"
	KeyRUC             = "ruc"
	KeyFecha           = "fecha"
	KeyRazonSocial     = "razon_social"
	KeyNumeroDocumento = "numero_documento"
)

// FromMap decodes one loosely-typed result object. Numbers become their decimal text;
// null, blank strings and values of any other type are absent. Unknown keys are ignored.
func FromMap(m map[string]any) Result {
	return Result{
		Total:           coerce(m[KeyTotal]),
		RUC:             coerce(m[KeyRUC]),
		Fecha:           coerce(m[KeyFecha]),
		RazonSocial:     coerce(m[KeyRazonSocial]),
		NumeroDocumento: coerce(m[KeyNumeroDocumento]),
	}
}

func coerce(v any) Field {
	switch t := v.(type) {
	case nil:
		return Absent()
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return Absent()
		}
		return Present(t)
	case json.Number:
		return Present(t.String())
	case float64:
		return Present(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return Present(strconv.Itoa(t))
	case int64:
		return Present(strconv.FormatInt(t, 10))
	default:
		return Absent()
	}
}
