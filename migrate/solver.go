package migrate

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinReferencePairs is the minimum number of pairs needed to determine all
// six affine coefficients.
const MinReferencePairs = 3

// maxConditionNumber is the 2-norm condition number above which the system
// matrix is treated as degenerate. Collinear or duplicate source points push
// the condition number to infinity; noisy but well-spread picks stay orders
// of magnitude below this.
const maxConditionNumber = 1e12

// SolveAffine computes the least-squares affine transform mapping each pair's
// source point onto its target point. The order of pairs does not affect the
// solution.
//
// Returns InsufficientPointsError for fewer than MinReferencePairs pairs and
// DegenerateInputError when the system matrix is singular or ill-conditioned,
// rather than letting garbage coefficients through.
func SolveAffine(pairs []ReferencePair) (AffineMatrix, error) {
	n := len(pairs)
	if n < MinReferencePairs {
		return AffineMatrix{}, &InsufficientPointsError{Got: n, Need: MinReferencePairs}
	}

	// Build the overdetermined system A * params = b with
	// params = [a, b, tx, c, d, ty]:
	//   x' = a*x + b*y + tx
	//   y' = c*x + d*y + ty
	a := mat.NewDense(2*n, 6, nil)
	b := mat.NewVecDense(2*n, nil)

	for i, pair := range pairs {
		x, y := pair.Source.X, pair.Source.Y
		a.Set(2*i, 0, x)
		a.Set(2*i, 1, y)
		a.Set(2*i, 2, 1)
		b.SetVec(2*i, pair.Target.X)

		a.Set(2*i+1, 3, x)
		a.Set(2*i+1, 4, y)
		a.Set(2*i+1, 5, 1)
		b.SetVec(2*i+1, pair.Target.Y)
	}

	cond := mat.Cond(a, 2)
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > maxConditionNumber {
		return AffineMatrix{}, &DegenerateInputError{
			Reason: "source points are collinear or not distinct",
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return AffineMatrix{}, &DegenerateInputError{Reason: err.Error()}
	}

	return AffineMatrix{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		Tx: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		Ty: params.AtVec(5),
	}, nil
}
