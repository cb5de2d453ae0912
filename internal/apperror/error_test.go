package apperror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func TestDefaultStatusCodes(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeSubRecipeNotFound, http.StatusNotFound},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeInvalidPath, http.StatusBadRequest},
		{CodeLoadInFlight, http.StatusConflict},
		{CodeRecipeFetchFailed, http.StatusServiceUnavailable},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeRecipeCycle, http.StatusUnprocessableEntity},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code).StatusCode; got != tt.want {
				t.Errorf("status for %s = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsComparesByCode(t *testing.T) {
	err := New(CodeSubRecipeNotFound, WithContext("recipe 42"))
	wrapped := fmt.Errorf("load: %w", err)

	if !errors.Is(wrapped, New(CodeSubRecipeNotFound)) {
		t.Error("expected wrapped error to match by code")
	}
	if errors.Is(wrapped, New(CodeRecipeFetchFailed)) {
		t.Error("different codes must not match")
	}
	if GetCode(wrapped) != CodeSubRecipeNotFound {
		t.Errorf("GetCode = %s", GetCode(wrapped))
	}
}

func TestWrapKeepsExistingAppError(t *testing.T) {
	orig := New(CodeStockFetchFailed)
	got := Wrap(orig, CodeInternalError, "stock")
	if got != orig {
		t.Fatal("Wrap should return the existing AppError")
	}
	if got.Context != "stock" {
		t.Errorf("context = %q, want stock", got.Context)
	}

	plain := errors.New("boom")
	w := Wrap(plain, CodeRecipeFetchFailed, "recipe")
	if !errors.Is(w, plain) {
		t.Error("cause should be reachable through Unwrap")
	}
	if Wrap(nil, CodeInternalError, "") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestStatusCodeForeignError(t *testing.T) {
	if got := StatusCode(errors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", got)
	}
	if got := StatusCode(NotFound(CodeSessionNotFound, "abc")); got != http.StatusNotFound {
		t.Errorf("StatusCode = %d", got)
	}
}

func TestToResponse_HidesCause(t *testing.T) {
	err := External(CodeRecipeFetchFailed, "recipe sword", errors.New("dial tcp: refused")).WithTraceID("abc")

	body, _ := json.Marshal(err.ToResponse())
	var out struct {
		Error map[string]string `json:"error"`
	}
	if e := json.Unmarshal(body, &out); e != nil {
		t.Fatal(e)
	}
	if out.Error["code"] != string(CodeRecipeFetchFailed) || out.Error["traceId"] != "abc" || out.Error["context"] != "recipe sword" {
		t.Errorf("envelope = %v", out.Error)
	}
	if strings.Contains(string(body), "refused") {
		t.Errorf("cause leaked into response: %s", body)
	}
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Error("request error", "error", Internal(CodeInternalError, "toggle", errors.New("boom")))

	var line struct {
		Error map[string]any `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %s: %v", buf.String(), err)
	}
	if line.Error["code"] != string(CodeInternalError) || line.Error["cause"] != "boom" {
		t.Errorf("logged = %v", line.Error)
	}
	if _, ok := line.Error["stack"]; !ok {
		t.Error("stack missing")
	}
}
