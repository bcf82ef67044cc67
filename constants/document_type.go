package constants

import "strings"

// DocumentType is the kind of expense document the user declares. Independent of OCR output.
type DocumentType string

const (
	Boleta     DocumentType = "boleta"
	Factura    DocumentType = "factura"
	Honorarios DocumentType = "honorarios"
	Otros      DocumentType = "otros"
)

var allDocumentTypes = []DocumentType{
	Boleta,
	Factura,
	Honorarios,
	Otros,
}

func DocumentTypes() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

func (d DocumentType) Valid() bool {
	for _, dt := range allDocumentTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// Label is the display form ("Boleta", "Factura", ...).
func (d DocumentType) Label() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// ParseDocumentType matches case-insensitively and accepts a few synonyms
// seen on receipts ("recibo por honorarios", "otro").
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]DocumentType{
		"recibo":                Honorarios,
		"recibo por honorarios": Honorarios,
		"rh":                    Honorarios,
		"otro":                  Otros,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	return "", false
}
