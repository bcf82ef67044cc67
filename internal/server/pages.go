package server

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating its config dir under $HOME
	api.DisableConfigDir()
}

// pageCount reads a PDF's page count with relaxed validation.
func pageCount(content []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("pdf page count: document has no pages")
	}
	return n, nil
}
