package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	e := New(ErrCodeInvalidScope, "assignee list is empty")
	want := "[SCOPE_001] assignee list is empty"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}

	withDetail := e.WithDetail("mode=assignee")
	if !strings.Contains(withDetail.Error(), "mode=assignee") {
		t.Fatalf("detail not included: %q", withDetail.Error())
	}
	// WithDetail must not mutate the receiver.
	if e.Detail != "" {
		t.Fatalf("receiver mutated by WithDetail")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeUpstreamError, "query failed") != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
}

func TestWrapPreservesCodeOnUnknown(t *testing.T) {
	inner := New(ErrCodeScopeTooLarge, "too many edges")
	wrapped := Wrap(inner, CodeUnknown, "request aborted")
	if wrapped.Code != ErrCodeScopeTooLarge {
		t.Fatalf("Code = %s, want %s", wrapped.Code, ErrCodeScopeTooLarge)
	}
}

func TestUnwrapChain(t *testing.T) {
	base := fmt.Errorf("connection refused")
	mid := Wrap(base, ErrCodeUpstreamError, "accessor failed")
	outer := Wrap(mid, ErrCodeInternal, "impact view failed")

	if !stderrors.Is(outer, base) {
		t.Fatal("errors.Is should traverse the chain to the base error")
	}
	if !IsCode(outer, ErrCodeUpstreamError) {
		t.Fatal("IsCode should find the mid-chain code")
	}
	if IsCode(outer, ErrCodeInvalidScope) {
		t.Fatal("IsCode matched a code not in the chain")
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{New(ErrCodeInvalidScope, "x"), IsValidation, true},
		{New(ErrCodeValidation, "x"), IsValidation, true},
		{New(ErrCodeNotFound, "x"), IsValidation, false},
		{New(ErrCodeNotFound, "x"), IsNotFound, true},
		{New(ErrCodeUpstreamTimeout, "x"), IsTimeout, true},
		{New(ErrCodeUpstreamError, "x"), IsTimeout, false},
	}
	for i, c := range cases {
		if got := c.pred(c.err); got != c.want {
			t.Errorf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != CodeOK {
		t.Fatal("nil error should map to CodeOK")
	}
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Fatal("plain error should map to CodeUnknown")
	}
	if GetCode(NewValidation("bad %s", "input")) != ErrCodeValidation {
		t.Fatal("NewValidation should carry ErrCodeValidation")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeInvalidScope:    http.StatusBadRequest,
		ErrCodeScopeTooLarge:   http.StatusRequestEntityTooLarge,
		ErrCodeUpstreamTimeout: http.StatusGatewayTimeout,
		ErrCodeUpstreamError:   http.StatusBadGateway,
		ErrorCode("NOPE_999"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatusForCode(code); got != want {
			t.Errorf("HTTPStatusForCode(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestModuleForCode(t *testing.T) {
	if got := ModuleForCode(ErrCodeScopeTooLarge); got != "SCOPE" {
		t.Fatalf("ModuleForCode = %q, want SCOPE", got)
	}
	if got := ModuleForCode(ErrCodeUpstreamTimeout); got != "UPSTREAM" {
		t.Fatalf("ModuleForCode = %q, want UPSTREAM", got)
	}
}

func TestStackCaptured(t *testing.T) {
	e := New(ErrCodeInternal, "boom")
	if !strings.Contains(e.Stack, "errors_test.go") {
		t.Fatalf("stack should reference the creating file, got: %s", e.Stack)
	}
}
