package inventory

import "testing"

func TestMovementKindDelta(t *testing.T) {
	tests := []struct {
		kind MovementKind
		qty  int
		want int
	}{
		{MovementIn, 10, 10},
		{MovementOut, 10, -10},
		{MovementAdjustment, 5, 5},
		{MovementReturn, 3, 3},
	}
	for _, tt := range tests {
		if got := tt.kind.Delta(tt.qty); got != tt.want {
			t.Errorf("%s.Delta(%d) = %d, want %d", tt.kind, tt.qty, got, tt.want)
		}
	}
}

func TestMovementKindValid(t *testing.T) {
	for _, k := range []MovementKind{MovementIn, MovementOut, MovementAdjustment, MovementReturn} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if MovementKind("TRANSFER").Valid() {
		t.Error("TRANSFER should not be valid")
	}
	if MovementKind("").Valid() {
		t.Error("empty kind should not be valid")
	}
}
