package extract

import (
	"strings"

	"github.com/joseph-ayodele/expense-docs/internal/common"
)

// Fields is the typed, normalized view of a Result. A nil pointer means absent;
// present values always satisfy their format.
type Fields struct {
	Total           *float64
	RUC             *string
	Fecha           *string
	RazonSocial     string
	NumeroDocumento string
}

func (f Fields) HasTotal() bool { return f.Total != nil }

// Validate turns raw extraction output plus the user's manual total into Fields.
// Pure; re-run it whenever the manual total changes.
//
// The OCR total wins when present; a present but unparsable OCR total yields an
// absent total without consulting manualTotal.
func Validate(res Result, manualTotal string) Fields {
	var out Fields

	rawTotal := manualTotal
	if v, ok := res.Total.Get(); ok && strings.TrimSpace(v) != "" {
		rawTotal = v
	}
	if f, ok := common.ParseAmount(rawTotal); ok {
		out.Total = &f
	}

	if v, ok := res.RUC.Get(); ok {
		v = strings.TrimSpace(v)
		if common.IsRUC(v) {
			out.RUC = &v
		}
	}

	if v, ok := res.Fecha.Get(); ok {
		v = strings.TrimSpace(v)
		if common.IsISODate(v) {
			out.Fecha = &v
		}
	}

	out.RazonSocial = res.RazonSocial.OrEmpty()
	out.NumeroDocumento = res.NumeroDocumento.OrEmpty()
	return out
}
