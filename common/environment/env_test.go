package environment_test

import (
	"testing"

	"github.com/bdobrica/opentainer/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if got := environment.StringOr("TEST_STRING", "default"); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if got := environment.StringOr("TEST_STRING_MISSING", "default"); got != "default" {
		t.Errorf("expected %q, got %q", "default", got)
	}
}

func TestString(t *testing.T) {
	t.Setenv("TEST_SET_EMPTY", "")
	if _, ok := environment.String("TEST_SET_EMPTY"); !ok {
		t.Error("expected set-but-empty to report ok")
	}
	if _, ok := environment.String("TEST_STRING_MISSING"); ok {
		t.Error("expected missing variable to report !ok")
	}
}

func TestBoolOr(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !environment.BoolOr("TEST_BOOL", false) {
		t.Error("expected true")
	}
	t.Setenv("TEST_BOOL", "0")
	if environment.BoolOr("TEST_BOOL", true) {
		t.Error("expected false")
	}
	if !environment.BoolOr("TEST_BOOL_MISSING", true) {
		t.Error("expected default true")
	}
}
