package report

import (
	"fmt"

	"github.com/cwbudde/curvefit/internal/fit"
)

// Expression formats the fitted curve as a plain-text parametric expression.
// The angle is substituted in degrees.
func Expression(p fit.Params) string {
	theta := fmt.Sprintf("%.6f", p.ThetaDeg)
	m := fmt.Sprintf("%.6f", p.M)
	x := fmt.Sprintf("%.6f", p.X)
	return "(t*cos(" + theta + ") - exp(" + m + "*abs(t))*sin(0.3*t)*sin(" + theta + ") + " + x + ", " +
		"42 + t*sin(" + theta + ") + exp(" + m + "*abs(t))*sin(0.3*t)*cos(" + theta + "))"
}

// LaTeX formats the fitted curve as a LaTeX tuple
func LaTeX(p fit.Params) string {
	theta := fmt.Sprintf("%.6f", p.ThetaDeg)
	m := fmt.Sprintf("%.6f", p.M)
	x := fmt.Sprintf("%.6f", p.X)
	return `\left(t\cos(` + theta + `) - e^{` + m + `|t|}\sin(0.3t)\sin(` + theta + `) + ` + x +
		`,\; 42 + t\sin(` + theta + `) + e^{` + m + `|t|}\sin(0.3t)\cos(` + theta + `)\right)`
}
