package mcperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(Validation, "missing required env: API_KEY")
	if got, want := err.Error(), "validation: missing required env: API_KEY"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(Process, cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to match its cause")
	}
	if KindOf(err) != Process {
		t.Fatal("expected wrapped error to carry its kind")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(Storage, nil); err != nil {
		t.Fatalf("expected nil for nil cause, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Process, http.StatusConflict},
		{Storage, http.StatusInternalServerError},
		{Network, http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := New(c.kind, "x")
		if got := HTTPStatus(err); got != c.want {
			t.Errorf("kind %s: got %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestKindOf_PlainErrorIsStorage(t *testing.T) {
	if KindOf(fmt.Errorf("plain")) != Storage {
		t.Fatal("expected plain errors to default to Storage kind")
	}
}
