package layout

import (
	"regexp"
	"strings"

	"albumpress/internal/domain/jsoncfg"
)

var (
	propertyPattern = regexp.MustCompile(`^-?[a-zA-Z][a-zA-Z0-9-]*$`)
	colorPattern    = regexp.MustCompile(`^[#a-zA-Z0-9(),.%\s-]{1,64}$`)
)

// pxProperties get a px unit when the editor sends a bare number.
var pxProperties = map[string]struct{}{
	"fontSize":      {},
	"letterSpacing": {},
	"wordSpacing":   {},
	"textIndent":    {},
	"borderRadius":  {},
	"borderWidth":   {},
	"padding":       {},
	"paddingTop":    {},
	"paddingRight":  {},
	"paddingBottom": {},
	"paddingLeft":   {},
}

// inlineStyle renders a style map as CSS declarations in key order.
func inlineStyle(style jsoncfg.StyleMap) string {
	var b strings.Builder
	for _, key := range style.SortedKeys() {
		name := camelToKebab(key)
		if !propertyPattern.MatchString(name) {
			continue
		}
		value := styleValue(key, style[key])
		if value == "" {
			continue
		}
		b.WriteString(name + ":" + value + ";")
	}
	return b.String()
}

func styleValue(key string, v any) string {
	switch val := v.(type) {
	case float64:
		out := formatNumber(val)
		if _, ok := pxProperties[key]; ok {
			out += "px"
		}
		return out
	case string:
		return sanitizeCSSValue(val)
	}
	return ""
}

// camelToKebab converts fontSize to font-size.
func camelToKebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sanitizeCSSValue drops characters that could end the declaration or the
// surrounding attribute.
func sanitizeCSSValue(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\\', '\n', '\r':
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}

func sanitizeColor(v string) (string, bool) {
	if v == "" || !colorPattern.MatchString(v) {
		return "", false
	}
	return v, true
}

// sanitizeImageURL rejects script URLs and strips control characters.
func sanitizeImageURL(raw string) string {
	raw = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw)
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "vbscript:") {
		return ""
	}
	return raw
}

var cssURLReplacer = strings.NewReplacer(
	`'`, "%27",
	`"`, "%22",
	`\`, "%5C",
	`(`, "%28",
	`)`, "%29",
	" ", "%20",
	"<", "%3C",
	">", "%3E",
)

// escapeCSSURL makes a URL safe inside url('...').
func escapeCSSURL(u string) string {
	return cssURLReplacer.Replace(u)
}
