package diag_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/agenthands/drasm/pkg/core/diag"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *diag.Error
		want string
	}{
		{diag.New(diag.KindResolution, 4, "y", "unknown identifier %s", "y"), "resolution error at line 4: unknown identifier y"},
		{diag.New(diag.KindInstantiation, 0, "Foo", "class %s is abstract", "Foo"), "instantiation error: class Foo is abstract"},
		{&diag.Error{Kind: 0, Msg: "odd"}, "unknown error: odd"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestAsThroughWrapping(t *testing.T) {
	base := diag.New(diag.KindType, 7, "v", "unknown type Frobnicator")
	wrapped := errors.WithMessage(fmt.Errorf("stage: %w", base), "drasm: generate")

	d, ok := diag.As(wrapped)
	if !ok || d != base {
		t.Fatalf("expected the original diagnostic, got %v", d)
	}
	if !diag.Is(wrapped, diag.KindType) || diag.Is(wrapped, diag.KindStructural) {
		t.Error("Is reports the wrong kind")
	}
	if _, ok := diag.As(errors.New("plain")); ok {
		t.Error("plain errors carry no diagnostic")
	}
}
