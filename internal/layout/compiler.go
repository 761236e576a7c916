// Package layout turns an album payload into a self-contained HTML document
// whose pages map 1:1 to printed PDF pages.
//
// Compile is pure: it performs no I/O and the same payload always yields the
// same markup, which is what lets the renderer and tests treat the output as
// a value.
package layout

import (
	"html"
	"strconv"
	"strings"

	"albumpress/internal/domain/jsoncfg"
)

// DefaultBackground is used for pages without a usable theme.
const DefaultBackground = "#ffffff"

// Document is the compiled album.
type Document struct {
	Markup    string
	WidthCm   float64
	HeightCm  float64
	PageCount int
}

// Compile renders payload into markup sized to the album dimensions.
func Compile(payload jsoncfg.AlbumPayload) Document {
	width, height := payload.AlbumSize.Dimensions()
	doc := Document{
		WidthCm:   width,
		HeightCm:  height,
		PageCount: len(payload.Pages),
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	writeStylesheet(&b, width, height)
	b.WriteString("</style>\n</head>\n<body>\n")
	for i, page := range payload.Pages {
		last := i == len(payload.Pages)-1
		writePage(&b, payload, page, last)
	}
	b.WriteString("</body>\n</html>\n")

	doc.Markup = b.String()
	return doc
}

func writeStylesheet(b *strings.Builder, width, height float64) {
	w, h := formatNumber(width)+"cm", formatNumber(height)+"cm"
	b.WriteString("@page { size: " + w + " " + h + "; margin: 0; }\n")
	b.WriteString("html, body { margin: 0; padding: 0; }\n")
	b.WriteString("body { -webkit-print-color-adjust: exact; print-color-adjust: exact; }\n")
	b.WriteString(".page { position: relative; overflow: hidden; box-sizing: border-box; width: " + w + "; height: " + h + "; background-size: cover; background-position: center; background-repeat: no-repeat; }\n")
	b.WriteString(".page-break { break-after: page; page-break-after: always; }\n")
	b.WriteString(".slot { position: absolute; overflow: hidden; box-sizing: border-box; }\n")
	b.WriteString(".photo-slot img { display: block; width: 100%; height: 100%; object-fit: cover; }\n")
	b.WriteString(".text-slot { overflow-wrap: break-word; }\n")
	b.WriteString(".title-overlay { display: flex; flex-direction: column; justify-content: center; }\n")
	b.WriteString(".title-overlay h1, .title-overlay h2 { margin: 0; }\n")
}

func writePage(b *strings.Builder, payload jsoncfg.AlbumPayload, page jsoncfg.Page, last bool) {
	class := "page"
	if !last {
		class += " page-break"
	}
	b.WriteString(`<div class="` + class + `" style="` + html.EscapeString(pageBackground(page.Theme)) + `">` + "\n")

	for i, slot := range page.Layout.Slots {
		src := slotImage(page, slot.ImageIndex.Index(i))
		if src == "" {
			continue
		}
		b.WriteString(`<div class="slot photo-slot" style="` + html.EscapeString(boundsCSS(slot.Bounds, 0)) + `">`)
		b.WriteString(`<img src="` + html.EscapeString(src) + `" alt="">`)
		b.WriteString("</div>\n")
	}

	for i, slot := range page.Layout.TextSlots {
		text := jsoncfg.At(page.Texts, slot.TextIndex.Index(i))
		style := jsoncfg.Merge(payload.TextSettings, page.TextSettings, slot.Style)
		css := boundsCSS(slot.Bounds, 0) + inlineStyle(style)
		b.WriteString(`<div class="slot text-slot" style="` + html.EscapeString(css) + `">`)
		// Rich text comes from the album's own editor and is kept as-is.
		b.WriteString(text)
		b.WriteString("</div>\n")
	}

	if overlay := page.Layout.TitleOverlay; overlay != nil {
		writeTitleOverlay(b, payload, *overlay)
	}

	b.WriteString("</div>\n")
}

func writeTitleOverlay(b *strings.Builder, payload jsoncfg.AlbumPayload, overlay jsoncfg.TitleOverlay) {
	title, subtitle := payload.Title.Trimmed(), payload.Subtitle.Trimmed()
	if title == "" && subtitle == "" {
		return
	}
	css := boundsCSS(overlay.Bounds, 100)
	switch align := strings.ToLower(overlay.Align.Trimmed()); align {
	case "left", "right", "center":
		css += "text-align:" + align + ";"
	default:
		css += "text-align:center;"
	}
	b.WriteString(`<div class="slot title-overlay" style="` + html.EscapeString(css) + `">`)
	if title != "" {
		b.WriteString(`<h1 class="album-title">` + html.EscapeString(title) + `</h1>`)
	}
	if subtitle != "" {
		b.WriteString(`<h2 class="album-subtitle">` + html.EscapeString(subtitle) + `</h2>`)
	}
	b.WriteString("</div>\n")
}

// slotImage prefers a local edit preview over the assigned image.
func slotImage(page jsoncfg.Page, idx int) string {
	if edit, ok := page.Edits[idx]; ok {
		if src := sanitizeImageURL(edit.PreviewURL.Trimmed()); src != "" {
			return src
		}
	}
	return sanitizeImageURL(strings.TrimSpace(jsoncfg.At(page.AssignedImages, idx)))
}

func pageBackground(theme *jsoncfg.Theme) string {
	if theme != nil {
		if img := sanitizeImageURL(theme.Image.Trimmed()); img != "" {
			return "background-color:" + DefaultBackground + ";background-image:url('" + escapeCSSURL(img) + "');"
		}
		if color, ok := sanitizeColor(theme.Color.Trimmed()); ok {
			return "background-color:" + color + ";"
		}
	}
	return "background-color:" + DefaultBackground + ";"
}

// boundsCSS maps percentage bounds to absolute positioning. Missing
// width/height fall back to sizeDefault; top/left fall back to 0. Values are
// not clamped.
func boundsCSS(bounds jsoncfg.Bounds, sizeDefault float64) string {
	return "top:" + formatNumber(bounds.Top.Or(0)) + "%;" +
		"left:" + formatNumber(bounds.Left.Or(0)) + "%;" +
		"width:" + formatNumber(bounds.Width.Or(sizeDefault)) + "%;" +
		"height:" + formatNumber(bounds.Height.Or(sizeDefault)) + "%;"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
