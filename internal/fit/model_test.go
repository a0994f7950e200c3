package fit

import (
	"math"
	"testing"
)

func TestModelKnownValues(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		t      float64
		wantX  float64
		wantY  float64
	}{
		{
			name:   "zero angle zero rate",
			params: Params{ThetaDeg: 0, M: 0, X: 0},
			t:      10,
			wantX:  10,
			wantY:  42 + math.Sin(3),
		},
		{
			name:   "right angle",
			params: Params{ThetaDeg: 90, M: 0, X: 5},
			t:      10,
			wantX:  10*math.Cos(math.Pi/2) - math.Sin(3) + 5,
			wantY:  52 + math.Sin(3)*math.Cos(math.Pi/2),
		},
		{
			name:   "rate uses absolute time",
			params: Params{ThetaDeg: 0, M: 0.01, X: 0},
			t:      -10,
			wantX:  -10,
			wantY:  42 + math.Exp(0.1)*math.Sin(-3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Model(tt.params, tt.t)
			if math.Abs(x-tt.wantX) > 1e-12 {
				t.Errorf("x = %.15f, want %.15f", x, tt.wantX)
			}
			if math.Abs(y-tt.wantY) > 1e-12 {
				t.Errorf("y = %.15f, want %.15f", y, tt.wantY)
			}
		})
	}
}

func TestModelDeterministic(t *testing.T) {
	p := Params{ThetaDeg: 28.1, M: 0.021, X: 54.9}
	ts := []float64{6, 12.5, 33.3, 60}

	xs1, ys1 := Predict(p, ts)
	xs2, ys2 := Predict(p, ts)

	for i := range ts {
		if xs1[i] != xs2[i] || ys1[i] != ys2[i] {
			t.Errorf("Prediction %d differs between calls", i)
		}
		x, y := Model(p, ts[i])
		if x != xs1[i] || y != ys1[i] {
			t.Errorf("Predict and Model disagree at t=%f", ts[i])
		}
	}
}

func TestPredictEmpty(t *testing.T) {
	xs, ys := Predict(Params{}, nil)
	if len(xs) != 0 || len(ys) != 0 {
		t.Errorf("Expected empty predictions, got %d/%d", len(xs), len(ys))
	}
}
