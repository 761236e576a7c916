package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumpress/internal/domain/jsoncfg"
	"albumpress/internal/layout"
)

// minimalPDF builds a well-formed PDF with n empty 20x20cm pages.
func minimalPDF(n int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 567 567] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestCmToInches(t *testing.T) {
	assert.InDelta(t, 7.874015748, CmToInches(20), 1e-9)
	assert.InDelta(t, 1.0, CmToInches(2.54), 1e-12)
}

func TestValidateRejectsEmptyAndInvalidSizes(t *testing.T) {
	assert.ErrorIs(t, validate(Request{WidthCm: 20, HeightCm: 20}), ErrEmptyDocument)
	assert.Error(t, validate(Request{WidthCm: 0, HeightCm: 20, PageCount: 1}))
	assert.NoError(t, validate(Request{WidthCm: 20, HeightCm: 20, PageCount: 2}))
}

func TestChromeRendererRejectsEmptyDocumentWithoutLaunching(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{Bin: "/nonexistent/chrome"}, zerolog.Nop())
	_, err := r.Render(context.Background(), Request{Markup: "<html></html>", WidthCm: 20, HeightCm: 20})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestVerifyPageCount(t *testing.T) {
	pdf := minimalPDF(2)

	n, err := CountPages(pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.NoError(t, VerifyPageCount(pdf, 2))
	assert.ErrorIs(t, VerifyPageCount(pdf, 3), ErrPageCountMismatch)
}

func TestCountPagesRejectsGarbage(t *testing.T) {
	_, err := CountPages([]byte("not a pdf"))
	assert.Error(t, err)
}

// TestChromeRendererEndToEnd needs a local Chrome; set ALBUMPRESS_CHROME_BIN
// to run it.
func TestChromeRendererEndToEnd(t *testing.T) {
	bin := os.Getenv("ALBUMPRESS_CHROME_BIN")
	if bin == "" {
		t.Skip("ALBUMPRESS_CHROME_BIN not set")
	}
	payload, err := jsoncfg.ParseAlbumPayload([]byte(`{
		"albumSize": {"width": 20, "height": 20},
		"pages": [
			{"layout": {"slots": [{"bounds": {"top": 0, "left": 0, "width": 100, "height": 100}}]}},
			{"layout": {"slots": [{"bounds": {"top": 0, "left": 0, "width": 100, "height": 100}}]}}
		]
	}`))
	require.NoError(t, err)
	doc := layout.Compile(payload)

	r := NewChromeRenderer(ChromeOptions{Bin: bin, NoSandbox: true, IdleWindow: 200 * time.Millisecond}, zerolog.Nop())
	pdf, err := r.Render(context.Background(), Request{
		Markup:    doc.Markup,
		WidthCm:   doc.WidthCm,
		HeightCm:  doc.HeightCm,
		PageCount: doc.PageCount,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.NoError(t, VerifyPageCount(pdf, 2))
}
