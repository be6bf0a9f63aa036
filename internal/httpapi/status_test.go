package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

func TestErrorStatusMapsKindsToHTTPStatus(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.Unauthorized, http.StatusUnauthorized},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.BadRequest, http.StatusBadRequest},
		{apperr.InvalidQuery, http.StatusBadRequest},
		{apperr.GitConflict, http.StatusConflict},
		{apperr.GitAuthMissing, http.StatusUnauthorized},
		{apperr.PushFailed, http.StatusBadGateway},
		{apperr.EngineUnavailable, http.StatusBadGateway},
		{apperr.Timeout, http.StatusGatewayTimeout},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		got := errorStatus(apperr.New(c.kind, "boom"))
		if got != c.want {
			t.Errorf("kind %s: got status %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestErrorStatusDefaultsUnwrappedErrorsToInternal(t *testing.T) {
	if got := errorStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected InternalServerError for a non-apperr error, got %d", got)
	}
}

func TestWriteErrorEncodesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.New(apperr.NotFound, "chat session not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("expected non-empty error message")
	}
}
