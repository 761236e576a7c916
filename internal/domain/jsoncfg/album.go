package jsoncfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultAlbumWidthCm is used when albumSize.width is missing or unusable.
	DefaultAlbumWidthCm = 20.0
	// DefaultAlbumHeightCm is used when albumSize.height is missing or unusable.
	DefaultAlbumHeightCm = 20.0
)

// AlbumPayload is the album description submitted at enqueue time. Every field
// is optional at decode time; missing or mistyped values fall back to zero
// values and the layout compiler applies defaults.
type AlbumPayload struct {
	SessionID    FlexString `json:"sessionId"`
	UserID       FlexString `json:"userId"`
	CustomerName FlexString `json:"customerName"`
	Title        FlexString `json:"title"`
	Subtitle     FlexString `json:"subtitle"`
	AlbumSize    AlbumSize  `json:"albumSize"`
	Pages        []Page     `json:"pages"`
	TextSettings StyleMap   `json:"textSettings"`
}

type AlbumSize struct {
	Width  Number `json:"width"`
	Height Number `json:"height"`
}

// Dimensions returns the album size in centimeters with defaults applied.
func (s AlbumSize) Dimensions() (float64, float64) {
	w, h := DefaultAlbumWidthCm, DefaultAlbumHeightCm
	if s.Width.Valid && s.Width.Value > 0 {
		w = s.Width.Value
	}
	if s.Height.Valid && s.Height.Value > 0 {
		h = s.Height.Value
	}
	return w, h
}

type Page struct {
	Theme          *Theme       `json:"theme"`
	Layout         PageLayout   `json:"layout"`
	AssignedImages []FlexString `json:"assignedImages"`
	Edits          Edits        `json:"edits"`
	Texts          []FlexString `json:"texts"`
	TextSettings   StyleMap     `json:"textSettings"`
}

type Theme struct {
	Color FlexString `json:"color"`
	Image FlexString `json:"image"`
}

type PageLayout struct {
	Slots        []PhotoSlot   `json:"slots"`
	TextSlots    []TextSlot    `json:"textSlots"`
	TitleOverlay *TitleOverlay `json:"titleOverlay"`
}

type Bounds struct {
	Top    Number `json:"top"`
	Left   Number `json:"left"`
	Width  Number `json:"width"`
	Height Number `json:"height"`
}

type PhotoSlot struct {
	Bounds     Bounds `json:"bounds"`
	ImageIndex Number `json:"imageIndex"`
}

type TextSlot struct {
	Bounds    Bounds   `json:"bounds"`
	TextIndex Number   `json:"textIndex"`
	Style     StyleMap `json:"style"`
}

type TitleOverlay struct {
	Bounds Bounds     `json:"bounds"`
	Align  FlexString `json:"align"`
}

// SlotEdit is a locally previewed or cropped replacement for a slot image.
type SlotEdit struct {
	PreviewURL FlexString `json:"previewURL"`
}

// ParseAlbumPayload decodes raw into an AlbumPayload. Type mismatches on
// individual fields are tolerated; only malformed JSON is rejected.
func ParseAlbumPayload(raw []byte) (AlbumPayload, error) {
	var p AlbumPayload
	if len(raw) == 0 {
		return p, errors.New("album payload is empty")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return AlbumPayload{}, fmt.Errorf("decode album payload: %w", err)
		}
	}
	return p, nil
}

// Number accepts JSON numbers and finite numeric strings. Anything else
// (including "Infinity" and "NaN") leaves Valid false instead of failing the
// decode.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*n = Number{Value: v, Valid: true}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			*n = Number{Value: f, Valid: true}
		}
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Or returns the value or fallback when invalid.
func (n Number) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// Index returns the value as a non-negative slice index.
func (n Number) Index(fallback int) int {
	if !n.Valid || n.Value < 0 {
		return fallback
	}
	return int(n.Value)
}

// FlexString accepts strings, numbers and booleans; objects, arrays and null
// decode to the empty string.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	*s = ""
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		*s = FlexString(v)
	case float64:
		*s = FlexString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*s = FlexString(strconv.FormatBool(v))
	}
	return nil
}

func (s FlexString) String() string { return string(s) }

// Trimmed returns the value with surrounding whitespace removed.
func (s FlexString) Trimmed() string { return strings.TrimSpace(string(s)) }

// StyleMap is a camelCase CSS property map as produced by the editor.
// Only string and numeric values are kept.
type StyleMap map[string]any

func (m *StyleMap) UnmarshalJSON(b []byte) error {
	*m = nil
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make(StyleMap, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case string, float64:
			out[k] = v
		}
	}
	*m = out
	return nil
}

// Merge layers the given maps left to right; later keys win.
func Merge(layers ...StyleMap) StyleMap {
	out := StyleMap{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// SortedKeys returns the map keys in lexical order.
func (m StyleMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Edits maps a slot index to its edit. The editor sends either an array
// (with null holes) or an object keyed by slot index.
type Edits map[int]SlotEdit

func (e *Edits) UnmarshalJSON(b []byte) error {
	*e = nil
	out := Edits{}
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err == nil {
		for i, item := range list {
			if edit, ok := decodeEdit(item); ok {
				out[i] = edit
			}
		}
		*e = out
		return nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(b, &keyed); err != nil {
		return nil
	}
	for k, item := range keyed {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || idx < 0 {
			continue
		}
		if edit, ok := decodeEdit(item); ok {
			out[idx] = edit
		}
	}
	*e = out
	return nil
}

func decodeEdit(raw json.RawMessage) (SlotEdit, bool) {
	var edit SlotEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return SlotEdit{}, false
	}
	return edit, edit.PreviewURL.Trimmed() != ""
}

// At returns the element at i unmodified, or "" when i is out of range.
func At(list []FlexString, i int) string {
	if i < 0 || i >= len(list) {
		return ""
	}
	return string(list[i])
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
