// Package storage holds the object-store backends rendered albums are
// uploaded to.
package storage

import "context"

// ContentTypePDF is the content type of every rendered album.
const ContentTypePDF = "application/pdf"

// ObjectStore writes an object and returns the key it was stored under.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
