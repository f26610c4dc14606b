package dynamo

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestStateIsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"finite", State{1, 2, 3}, true},
		{"nan", State{1, math.NaN()}, false},
		{"inf", State{math.Inf(-1)}, false},
		{"empty", State{}, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsValid(); got != tt.want {
			t.Errorf("%s: IsValid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStateSplit(t *testing.T) {
	q, qd := State{1, 2, 3, 4}.Split(2)
	if len(q) != 2 || len(qd) != 2 || q[1] != 2 || qd[0] != 3 {
		t.Fatalf("unexpected split: %v %v", q, qd)
	}
}

func TestVector6(t *testing.T) {
	v := NewVector6(r3.Vector{X: 3, Y: 4}, r3.Vector{Z: 12})
	if v.Translation().Norm() != 5 {
		t.Errorf("translation norm = %v, want 5", v.Translation().Norm())
	}
	if v.Norm() != 13 {
		t.Errorf("norm = %v, want 13", v.Norm())
	}

	scaled := v.Scale(2)
	if scaled[5] != 24 || v[5] != 12 {
		t.Errorf("scale must not mutate receiver: %v %v", scaled, v)
	}

	if diff := scaled.Sub(v).Sub(v); diff.Norm() != 0 {
		t.Errorf("expected zero difference, got %v", diff)
	}

	u := v.Control()
	u[0] = 100
	if v[0] != 3 {
		t.Error("Control must copy")
	}

	v[1] = math.NaN()
	if v.IsValid() {
		t.Error("NaN component must be invalid")
	}
}
