package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validation("bad input"), http.StatusUnprocessableEntity},
		{NotFound("missing"), http.StatusNotFound},
		{State("wrong state"), http.StatusBadRequest},
		{Conflict("exists"), http.StatusConflict},
		{Storage("disk", errors.New("io")), http.StatusInternalServerError},
		{Internal("boom", errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestClientMessageMasksInternals(t *testing.T) {
	if msg := ClientMessage(Internal("db exploded", errors.New("secret"))); msg == "db exploded" {
		t.Errorf("internal message leaked: %q", msg)
	}
	if msg := ClientMessage(Storage("path leaked", errors.New("x"))); msg == "path leaked" {
		t.Errorf("storage message leaked: %q", msg)
	}
	if msg := ClientMessage(Validation("Plate is invalid")); msg != "Plate is invalid" {
		t.Errorf("validation message mangled: %q", msg)
	}
}

func TestFieldsSurviveWrapping(t *testing.T) {
	err := ValidationFields("Validation failed", map[string][]string{
		"plate": {"bad format"},
	})
	wrapped := fmt.Errorf("creating load: %w", err)

	if KindOf(wrapped) != KindValidation {
		t.Errorf("kind lost through wrapping: %v", KindOf(wrapped))
	}
	fields := FieldsOf(wrapped)
	if len(fields["plate"]) != 1 || fields["plate"][0] != "bad format" {
		t.Errorf("fields lost through wrapping: %v", fields)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root")
	err := Internal("wrapper", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
}
