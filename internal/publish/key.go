package publish

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen bounds every slug component of an output key.
const MaxSlugLen = 40

const (
	fallbackSession  = "session"
	fallbackCustomer = "customer"
	fallbackTitle    = "album"
)

// BuildOutputKey derives the object key for a rendered album:
// {session}/{customer}-{title}-{unixMillis}.pdf.
func BuildOutputKey(sessionID, customerName, title string, at time.Time) string {
	return fmt.Sprintf("%s/%s-%s-%d.pdf",
		Slugify(sessionID, fallbackSession),
		Slugify(customerName, fallbackCustomer),
		Slugify(title, fallbackTitle),
		at.UnixMilli(),
	)
}

// Slugify strips diacritics, lowercases and collapses everything outside
// [a-z0-9] into single hyphens. An empty result yields fallback.
func Slugify(s, fallback string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	if slug == "" {
		return fallback
	}
	return slug
}
