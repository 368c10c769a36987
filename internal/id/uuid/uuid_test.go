package uuid

import (
	"strings"
	"testing"

	goUUID "github.com/google/uuid"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

func TestGeneratorObjectName(t *testing.T) {
	t.Parallel()

	gen := New()
	tests := []struct {
		prefix, filename, wantPrefix, wantExt string
	}{
		{"articles", "Cover.JPG", "articles/", ".jpg"},
		{"/articles/", "photo.png", "articles/", ".png"},
		{"", "noext", "", ""},
	}
	for _, tt := range tests {
		got, err := gen.ObjectName(tt.prefix, tt.filename)
		if err != nil {
			t.Fatalf("ObjectName() error = %v", err)
		}
		if !strings.HasPrefix(got, tt.wantPrefix) || !strings.HasSuffix(got, tt.wantExt) {
			t.Fatalf("ObjectName(%q, %q) = %q", tt.prefix, tt.filename, got)
		}
		id := strings.TrimSuffix(strings.TrimPrefix(got, tt.wantPrefix), tt.wantExt)
		if _, err := goUUID.Parse(id); err != nil {
			t.Fatalf("expected uuid segment in %q: %v", got, err)
		}
	}
}
