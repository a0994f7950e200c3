package fit

import "math"

// Model evaluates the curve at time t.
//
//	x(t) = t*cos(theta) - exp(M*|t|)*sin(0.3t)*sin(theta) + X
//	y(t) = 42 + t*sin(theta) + exp(M*|t|)*sin(0.3t)*cos(theta)
//
// theta is p.ThetaDeg converted to radians.
func Model(p Params, t float64) (x, y float64) {
	theta := p.ThetaDeg * math.Pi / 180.0
	sinT, cosT := math.Sincos(theta)
	wave := math.Exp(p.M*math.Abs(t)) * math.Sin(0.3*t)

	x = t*cosT - wave*sinT + p.X
	y = 42.0 + t*sinT + wave*cosT
	return x, y
}

// Predict evaluates the model over a time vector
func Predict(p Params, ts []float64) (xs, ys []float64) {
	xs = make([]float64, len(ts))
	ys = make([]float64, len(ts))
	for i, t := range ts {
		xs[i], ys[i] = Model(p, t)
	}
	return xs, ys
}
