package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Document represents a persisted expense document for data transfer between layers.
type Document struct {
	ID              uuid.UUID `json:"id"`
	SolicitudID     string    `json:"solicitud"`
	NumeroOperacion string    `json:"numero_operacion"`
	TipoDocumento   string    `json:"tipo_documento"`
	Fecha           *string   `json:"fecha"`
	NumeroDocumento string    `json:"numero_documento"`
	RUC             *string   `json:"ruc"`
	RazonSocial     string    `json:"razon_social"`
	Total           Amount    `json:"total"`
	NombreArchivo   string    `json:"nombre_archivo"`
	ArchivoKey      string    `json:"archivo,omitempty"`
	MIMEType        string    `json:"mime_type,omitempty"`
	SHA256          string    `json:"sha256,omitempty"`
	Pagina          int       `json:"pagina"`
	Creado          time.Time `json:"creado"`
}

// DocumentInput is one entry of the "documentos" field sent to the save endpoint.
type DocumentInput struct {
	TipoDocumento   string `json:"tipo_documento"`
	NumeroDocumento string `json:"numero_documento"`
	RUC             string `json:"ruc"`
	RazonSocial     string `json:"razon_social"`
	Fecha           string `json:"fecha"`
	Total           string `json:"total"`
}

// UnmarshalJSON accepts total as either a JSON string or a number.
func (d *DocumentInput) UnmarshalJSON(b []byte) error {
	type alias DocumentInput
	var raw struct {
		alias
		Total json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = DocumentInput(raw.alias)
	d.Total = ""
	t := bytes.TrimSpace(raw.Total)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	if t[0] == '"' {
		return json.Unmarshal(t, &d.Total)
	}
	var n json.Number
	if err := json.Unmarshal(t, &n); err != nil {
		return err
	}
	d.Total = n.String()
	return nil
}

// SaveResponse is the body of a successful save.
type SaveResponse struct {
	Mensaje    string     `json:"mensaje"`
	Documentos []Document `json:"documentos"`
}

// ErrorResponse is the body of any handled failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Amount is a two-decimal money value serialized as a string ("150.75").
type Amount float64

func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	t := bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(t) == 0 || string(t) == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(t), 64)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}
