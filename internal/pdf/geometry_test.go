package pdf

import (
	"errors"
	"strings"
	"testing"

	"book-binder/internal/types"
)

func TestTrimSpecValidate(t *testing.T) {
	base := TrimSpec{Width: 400, Height: 600, SourceWidth: 500, SourceHeight: 700, Gutter: 20}

	tests := []struct {
		name   string
		mutate func(*TrimSpec)
		ok     bool
	}{
		{"valid", func(s *TrimSpec) {}, true},
		{"zero gutter", func(s *TrimSpec) { s.Gutter = 0 }, true},
		{"trim wider than source", func(s *TrimSpec) { s.Width = 600 }, false},
		{"trim taller than source", func(s *TrimSpec) { s.Height = 800 }, false},
		{"negative gutter", func(s *TrimSpec) { s.Gutter = -1 }, false},
		{"gutter eats the page", func(s *TrimSpec) { s.Gutter = 200 }, false},
		{"zero trim", func(s *TrimSpec) { s.Width = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected GeometryError")
				}
				var appErr *types.AppError
				if !errors.As(err, &appErr) || appErr.Code != types.ErrGeometry {
					t.Errorf("want GEOMETRY_ERROR, got %v", err)
				}
			}
		})
	}
}

func TestShiftAlternatesByFinalParity(t *testing.T) {
	spec := TrimSpec{Width: 400, Height: 600, SourceWidth: 500, SourceHeight: 700, Gutter: 15}

	// Recto (odd final) pages shift the window left, pushing content
	// toward a left-hand spine.
	if got := spec.shiftFor(1); got != -15 {
		t.Errorf("shiftFor(1) = %.1f, want -15", got)
	}
	if got := spec.shiftFor(2); got != 15 {
		t.Errorf("shiftFor(2) = %.1f, want 15", got)
	}
	if spec.shiftFor(3) != spec.shiftFor(1) || spec.shiftFor(4) != spec.shiftFor(2) {
		t.Error("shift must alternate strictly by parity")
	}

	spec.SpineRight = true
	if got := spec.shiftFor(1); got != 15 {
		t.Errorf("right-hand spine shiftFor(1) = %.1f, want 15", got)
	}
}

func TestOddEvenSelectionsHonorParityOffset(t *testing.T) {
	spec := TrimSpec{ParityOffset: 0}
	odd, even := spec.oddEvenSelections()
	if odd != "odd" || even != "even" {
		t.Errorf("offset 0: got (%s,%s)", odd, even)
	}

	// With 3 front-matter pages before the body, local body page 1 is
	// final page 4: the selections swap so the gutter stays continuous
	// across the boundary.
	spec.ParityOffset = 3
	odd, even = spec.oddEvenSelections()
	if odd != "even" || even != "odd" {
		t.Errorf("offset 3: got (%s,%s)", odd, even)
	}

	spec.ParityOffset = 4
	odd, even = spec.oddEvenSelections()
	if odd != "odd" || even != "even" {
		t.Errorf("offset 4: got (%s,%s)", odd, even)
	}
}

func TestBoxDesc(t *testing.T) {
	spec := TrimSpec{Width: 400, Height: 600}

	if got := spec.boxDesc(0); got != "pos:c, dim:400.00 600.00" {
		t.Errorf("centered box desc = %q", got)
	}
	got := spec.boxDesc(-12.5)
	if !strings.Contains(got, "off:-12.50 0") || !strings.Contains(got, "dim:400.00 600.00") {
		t.Errorf("shifted box desc = %q", got)
	}
}

func TestCropRejectsInvalidSpec(t *testing.T) {
	spec := TrimSpec{Width: 600, Height: 600, SourceWidth: 500, SourceHeight: 700}
	if err := Crop("in.pdf", "out.pdf", spec); err == nil {
		t.Fatal("expected validation error before any file access")
	}
}
