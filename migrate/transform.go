package migrate

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// FitQuality quantifies how well a fitted transform reproduces the reference
// pairs it was fitted from. All distances are in target-space pixels.
type FitQuality struct {
	// RMSE is the root-mean-square residual distance between each pair's
	// target point and the transform applied to its source point.
	RMSE float64 `json:"rmse"`

	// Residuals holds the per-pair residual distances, in input order.
	Residuals []float64 `json:"residuals"`

	MaxResidual float64 `json:"maxResidual"`

	// ScaleX and ScaleY are the magnitudes of the images of the unit axis
	// vectors under the linear part.
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`

	// RotationDeg is the rotation of the linear part, normalized to
	// (-180, 180].
	RotationDeg float64 `json:"rotationDeg"`
}

// ScaleRatio returns the larger axis scale divided by the smaller. 1 means
// perfectly uniform scaling.
func (q FitQuality) ScaleRatio() float64 {
	lo, hi := q.ScaleX, q.ScaleY
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == 0 {
		return math.Inf(1)
	}
	return hi / lo
}

// FittedTransform is an affine transform plus the quality metrics derived
// from the pairs it was fitted to. Treated as immutable once computed.
type FittedTransform struct {
	Matrix  AffineMatrix `json:"matrix"`
	Quality FitQuality   `json:"quality"`
}

// Fit computes the least-squares affine transform for the given reference
// pairs and derives its quality metrics. At least MinReferencePairs pairs are
// required; using more averages out user picking error.
func Fit(pairs []ReferencePair) (*FittedTransform, error) {
	m, err := SolveAffine(pairs)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, len(pairs))
	var sumSq, maxResidual float64
	for i, pair := range pairs {
		predicted := m.Apply(pair.Source)
		d := planar.Distance(
			orb.Point{predicted.X, predicted.Y},
			orb.Point{pair.Target.X, pair.Target.Y},
		)
		residuals[i] = d
		sumSq += d * d
		if d > maxResidual {
			maxResidual = d
		}
	}

	return &FittedTransform{
		Matrix: m,
		Quality: FitQuality{
			RMSE:        math.Sqrt(sumSq / float64(len(pairs))),
			Residuals:   residuals,
			MaxResidual: maxResidual,
			ScaleX:      math.Hypot(m.A, m.C),
			ScaleY:      math.Hypot(m.B, m.D),
			RotationDeg: normalizeAngleSigned(math.Atan2(m.C, m.A) * 180 / math.Pi),
		},
	}, nil
}

// normalizeAngleSigned normalizes an angle in degrees to (-180, 180].
func normalizeAngleSigned(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees > 180 {
		degrees -= 360
	}
	if degrees <= -180 {
		degrees += 360
	}
	return degrees
}

// FitOptions holds the advisory quality thresholds used by Validate.
type FitOptions struct {
	// MaxRMSE is the residual ceiling in target pixels above which the fit
	// is flagged.
	MaxRMSE float64

	// MaxScaleRatio is the anisotropy ceiling (larger/smaller axis scale)
	// above which the fit is flagged.
	MaxScaleRatio float64

	// RMSEMultiplier converts RMSE into the suggested coordinate-matching
	// tolerance for the merge step.
	RMSEMultiplier float64
}

// DefaultFitOptions returns the standard validation thresholds.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxRMSE:        10.0,
		MaxScaleRatio:  1.1,
		RMSEMultiplier: 2.5,
	}
}

// SuggestedTolerance returns the coordinate-matching tolerance derived from
// the fit quality, coupling merge strictness to fit accuracy.
func (o FitOptions) SuggestedTolerance(q FitQuality) float64 {
	return q.RMSE * o.RMSEMultiplier
}

// ValidationReport is the advisory outcome of Validate. Warnings never block
// anything here; the caller decides whether to proceed.
type ValidationReport struct {
	IsAcceptable bool     `json:"isAcceptable"`
	Warnings     []string `json:"warnings"`
}

// Validate checks a fitted transform against the policy thresholds and
// returns warnings for anything that suggests a picking error. It produces
// warnings only, never errors.
func Validate(ft *FittedTransform, opts FitOptions) ValidationReport {
	var warnings []string

	if opts.MaxRMSE > 0 && ft.Quality.RMSE > opts.MaxRMSE {
		warnings = append(warnings, fmt.Sprintf(
			"RMSE %.1fpx exceeds ceiling %.1fpx; reference points may be picked imprecisely",
			ft.Quality.RMSE, opts.MaxRMSE))
	}

	ratio := ft.Quality.ScaleRatio()
	anisotropic := opts.MaxScaleRatio > 0 && ratio > opts.MaxScaleRatio
	if anisotropic {
		warnings = append(warnings, fmt.Sprintf(
			"non-uniform scale %.3f x %.3f (ratio %.2f); maps rarely stretch on one axis only",
			ft.Quality.ScaleX, ft.Quality.ScaleY, ratio))
	}

	if anisotropic && math.Abs(ft.Quality.RotationDeg) > 1 {
		warnings = append(warnings, fmt.Sprintf(
			"rotation %.1f combined with non-uniform scale suggests a mismatched reference pair",
			ft.Quality.RotationDeg))
	}

	return ValidationReport{
		IsAcceptable: len(warnings) == 0,
		Warnings:     warnings,
	}
}

// ApplyToMarkers maps every marker's coordinates through the transform and
// returns new marker records. All other fields are copied unchanged; the
// input slice is not mutated.
func ApplyToMarkers(m AffineMatrix, markers []Marker) []Marker {
	result := make([]Marker, len(markers))
	for i, marker := range markers {
		c := marker.Clone()
		p := m.Apply(marker.Position())
		c.X = p.X
		c.Y = p.Y
		result[i] = c
	}
	return result
}

// ApplyToExport returns a copy of the export with every marker's coordinates
// mapped through the transform. Photos and metadata are carried unchanged.
func ApplyToExport(m AffineMatrix, e *Export) *Export {
	c := e.Clone()
	c.Markers = ApplyToMarkers(m, e.Markers)
	return c
}
