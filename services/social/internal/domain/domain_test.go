package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"ok", "hello", "hello", false},
		{"trimmed", "  hello \n", "hello", false},
		{"empty", "   ", "", true},
		{"markup only", "<br/>", "", true},
		{"max length", strings.Repeat("é", MaxContentLength), strings.Repeat("é", MaxContentLength), false},
		{"too long", strings.Repeat("a", MaxContentLength+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanContent("test", tt.in)
			if tt.wantErr {
				if KindOf(err) != KindValidation {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"abc", "star_gazer", "user42"}
	invalid := []string{"ab", "Upper", "with space", "dash-ed", strings.Repeat("a", 31)}
	for _, u := range valid {
		if err := ValidateUsername("test", u); err != nil {
			t.Fatalf("expected %q to be valid, got %v", u, err)
		}
	}
	for _, u := range invalid {
		if err := ValidateUsername("test", u); KindOf(err) != KindValidation {
			t.Fatalf("expected %q to be rejected, got %v", u, err)
		}
	}
}

func TestCleanBio(t *testing.T) {
	if s, err := CleanBio("test", ""); err != nil || s != "" {
		t.Fatalf("expected empty bio to be accepted, got %q %v", s, err)
	}
	if _, err := CleanBio("test", strings.Repeat("x", MaxBioLength+1)); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("get", "post %s", "p1"), KindNotFound},
		{"wrapped", fmt.Errorf("outer: %w", Unauthorized("edit", "not the author")), KindUnauthorized},
		{"plain error", errors.New("connection reset"), KindTransient},
		{"context", context.DeadlineExceeded, KindTransient},
		{"conflict", Conflict("like", "busy"), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestErrorsIsSentinels(t *testing.T) {
	err := Wrap("load post", NotFound("", "post p1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is(ErrNotFound) for %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatal("did not expect validation match")
	}

	taken := &Error{Kind: KindValidation, Msg: "username is already taken"}
	wrapped := Wrap("profile.update", taken)
	if !errors.Is(wrapped, taken) || !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected wrapped copy to match its sentinel, got %v", wrapped)
	}
	if errors.Is(Invalid("x", "content must not be empty"), taken) {
		t.Fatal("did not expect a different message to match")
	}
}

func TestWrap(t *testing.T) {
	if Wrap("op", nil) != nil {
		t.Fatal("expected nil for nil")
	}
	cause := errors.New("dial tcp: refused")
	err := Wrap("list comments", cause)
	if KindOf(err) != KindTransient || !errors.Is(err, cause) {
		t.Fatalf("expected transient wrapping the cause, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "list comments: ") {
		t.Fatalf("expected op prefix, got %q", err.Error())
	}
}

func TestIsTempID(t *testing.T) {
	if !IsTempID("tmp-1") || IsTempID("42") {
		t.Fatal("unexpected temp id classification")
	}
}

func TestPageNormalize(t *testing.T) {
	p := Page{Offset: -3, Limit: 1000}.Normalize()
	if p.Offset != 0 || p.Limit != MaxPageLimit {
		t.Fatalf("unexpected page %+v", p)
	}
	if p := (Page{}).Normalize(); p.Limit != DefaultPageLimit {
		t.Fatalf("expected default limit, got %d", p.Limit)
	}
}
