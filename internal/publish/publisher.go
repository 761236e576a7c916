// Package publish uploads rendered albums to object storage.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"albumpress/internal/storage"
)

// ErrNotPDF is returned when the bytes handed to Put do not sniff as a PDF.
var ErrNotPDF = errors.New("publish: artifact is not a PDF")

// Publisher stores rendered PDFs. It does not check for existing keys;
// uniqueness comes from the timestamp in BuildOutputKey.
type Publisher struct {
	store storage.ObjectStore
}

func NewPublisher(store storage.ObjectStore) *Publisher {
	return &Publisher{store: store}
}

// Put uploads data under key and returns the key the store recorded.
func (p *Publisher) Put(ctx context.Context, key string, data []byte) (string, error) {
	if p == nil || p.store == nil {
		return "", errors.New("publish: no object store configured")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty artifact", ErrNotPDF)
	}
	if mt := mimetype.Detect(data); !mt.Is(storage.ContentTypePDF) {
		return "", fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())
	}
	stored, err := p.store.Put(ctx, key, data, storage.ContentTypePDF)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return stored, nil
}
