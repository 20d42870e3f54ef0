package mesh

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Jacobian holds velocity derivatives: J[i][j] is d(v_i)/d(x_j).
type Jacobian [3][3]float64

// Curl returns the vorticity vector of the gradient.
func (j Jacobian) Curl() r3.Vec {
	return r3.Vec{
		X: j[2][1] - j[1][2],
		Y: j[0][2] - j[2][0],
		Z: j[1][0] - j[0][1],
	}
}

// tetraGradient solves E·G = D for the constant gradient of a linear field,
// where the rows of E are the cell edges from vertex 0 and the rows of D the
// matching value differences.
func tetraGradient(edges [3]r3.Vec, vals [4]r3.Vec) (Jacobian, bool) {
	e := mat.NewDense(3, 3, nil)
	d := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		diff := r3.Sub(vals[r+1], vals[0])
		e.SetRow(r, []float64{edges[r].X, edges[r].Y, edges[r].Z})
		d.SetRow(r, []float64{diff.X, diff.Y, diff.Z})
	}

	var g mat.Dense
	if err := g.Solve(e, d); err != nil {
		return Jacobian{}, false
	}

	// G[j][i] = d(v_i)/d(x_j)
	var jac Jacobian
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			jac[i][j] = g.At(j, i)
		}
	}
	return jac, true
}
