package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInsufficientFunds, "insufficient funds", map[string]any{"balance": int64(10)})
	wrapped := fmt.Errorf("create round: %w", err)

	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Fatal("expected insufficient funds match")
	}
	if errors.Is(wrapped, ErrRoundNotFound) {
		t.Fatal("unexpected round not found match")
	}
	if got := CodeOf(wrapped); got != CodeInsufficientFunds {
		t.Fatalf("code = %s, want %s", got, CodeInsufficientFunds)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(CodeTransientFailure, "ledger busy", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "ledger busy: disk on fire" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("code = %q, want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:          http.StatusBadRequest,
		CodeInsufficientFunds:     http.StatusPaymentRequired,
		CodeRoundNotFound:         http.StatusNotFound,
		CodeRoundAlreadyResolved:  http.StatusConflict,
		CodeInternalInconsistency: http.StatusInternalServerError,
		CodeTransientFailure:      http.StatusServiceUnavailable,
		CodeRateLimited:           http.StatusTooManyRequests,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("%s: status = %d, want %d", code, got, want)
		}
	}
}
