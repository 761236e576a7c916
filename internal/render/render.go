// Package render turns compiled album markup into PDF bytes.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const cmPerInch = 2.54

// ErrEmptyDocument is returned for documents without pages; there is nothing
// to print and Chrome rejects an empty page range.
var ErrEmptyDocument = errors.New("render: document has no pages")

// ErrPageCountMismatch means the printed PDF does not have one page per
// album page.
var ErrPageCountMismatch = errors.New("render: page count mismatch")

// Request describes one render. Width and height are the physical page size
// in centimeters and apply to every page.
type Request struct {
	Markup    string
	WidthCm   float64
	HeightCm  float64
	PageCount int
}

// Renderer rasterizes markup into a PDF. Implementations own their browser
// (or other engine) for the duration of one call.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// CmToInches converts centimeters to the inch units the print API expects.
func CmToInches(cm float64) float64 {
	return cm / cmPerInch
}

func validate(req Request) error {
	if req.PageCount <= 0 {
		return ErrEmptyDocument
	}
	if req.WidthCm <= 0 || req.HeightCm <= 0 {
		return fmt.Errorf("render: invalid page size %gx%g cm", req.WidthCm, req.HeightCm)
	}
	return nil
}

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	model.ConfigPath = "disable"
}

// CountPages reads the page count of a PDF.
func CountPages(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("render: read pdf: %w", err)
	}
	return n, nil
}

// VerifyPageCount checks that pdf has exactly want pages.
func VerifyPageCount(pdf []byte, want int) error {
	got, err := CountPages(pdf)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: printed %d, expected %d", ErrPageCountMismatch, got, want)
	}
	return nil
}
