package infra

import (
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	query := `--sql 0b6f3a52-9f1e-4c57-8d2a-7a5c1e9b3f10
select 1;`
	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "0b6f3a52-9f1e-4c57-8d2a-7a5c1e9b3f10" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsBareQuery(t *testing.T) {
	if _, _, err := extractMarker("select 1;"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("err = %v, want ErrMissingMarker", err)
	}
}
