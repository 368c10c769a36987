// Package uuid names uploaded objects with time-ordered UUIDs.
package uuid

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// ObjectName joins prefix, a fresh UUID7 and the lower-cased extension of
// the uploaded file name, e.g. "articles/0190c1d2-....jpg".
func (g Generator) ObjectName(prefix, filename string) (string, error) {
	id, err := g.NewID()
	if err != nil {
		return "", err
	}
	name := id + strings.ToLower(path.Ext(filename))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name, nil
	}
	return prefix + "/" + name, nil
}
