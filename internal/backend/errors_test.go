package backend

import (
	"errors"
	"testing"
)

func TestWrapIdempotent(t *testing.T) {
	e := &Error{Message: "boom", Status: 500, Code: "X"}
	if Wrap(e) != e {
		t.Fatal("wrapping a classified error must return it unchanged")
	}
	if Wrap(Wrap(e)) != Wrap(e) {
		t.Fatal("double wrap must be identity-preserving")
	}
}

func TestWrapForeignError(t *testing.T) {
	got := Wrap(errors.New("something broke"))
	if got.Status != 500 {
		t.Fatalf("want status 500, got %d", got.Status)
	}
	if got.Code != CodePluginError {
		t.Fatalf("want code %q, got %q", CodePluginError, got.Code)
	}
	if got.Message != "something broke" {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		status                          int
		client, server, auth, rateLimit bool
	}{
		{400, true, false, false, false},
		{401, true, false, true, false},
		{403, true, false, true, false},
		{404, true, false, false, false},
		{429, true, false, false, true},
		{499, true, false, false, false},
		{500, false, true, false, false},
		{502, false, true, false, false},
		{503, false, true, false, false},
	}

	for _, tt := range tests {
		e := &Error{Status: tt.status}
		if e.IsClientError() != tt.client {
			t.Fatalf("status %d: IsClientError = %v", tt.status, e.IsClientError())
		}
		if e.IsServerError() != tt.server {
			t.Fatalf("status %d: IsServerError = %v", tt.status, e.IsServerError())
		}
		if e.IsAuthError() != tt.auth {
			t.Fatalf("status %d: IsAuthError = %v", tt.status, e.IsAuthError())
		}
		if e.IsRateLimited() != tt.rateLimit {
			t.Fatalf("status %d: IsRateLimited = %v", tt.status, e.IsRateLimited())
		}
	}
}

func TestDisplayMessageHidesInternalDetail(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantRaw bool
	}{
		{name: "server error hidden", err: &Error{Message: "pq: connection refused", Status: 500}, wantRaw: false},
		{name: "auth error hidden", err: &Error{Message: "bad service key", Status: 401}, wantRaw: false},
		{name: "forbidden hidden", err: &Error{Message: "row level security", Status: 403}, wantRaw: false},
		{name: "rate limit verbatim", err: &Error{Message: "monthly quota exceeded", Status: 429}, wantRaw: true},
		{name: "client error verbatim", err: &Error{Message: "song not found", Status: 404}, wantRaw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.DisplayMessage()
			if tt.wantRaw && got != tt.err.Message {
				t.Fatalf("want raw message %q, got %q", tt.err.Message, got)
			}
			if !tt.wantRaw && got == tt.err.Message {
				t.Fatalf("internal message %q leaked to display", tt.err.Message)
			}
		})
	}
}

func TestRetryablePolicy(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{name: "bad request", err: &Error{Status: 400}, want: false},
		{name: "not found", err: &Error{Status: 404}, want: false},
		{name: "rate limited", err: &Error{Status: 429}, want: true},
		{name: "server error", err: &Error{Status: 500}, want: true},
		{name: "network fault", err: &Error{Status: 503, Code: CodeNetworkError}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Fatalf("retryable = %v, want %v", got, tt.want)
			}
		})
	}
}
