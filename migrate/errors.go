package migrate

import "fmt"

// InsufficientPointsError indicates fewer than the minimum number of
// reference pairs were supplied to fit an affine transform.
type InsufficientPointsError struct {
	Got  int
	Need int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("need at least %d reference pairs, got %d", e.Need, e.Got)
}

// DegenerateInputError indicates the reference pairs yield a singular or
// ill-conditioned system (collinear or duplicate source points).
type DegenerateInputError struct {
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate reference points: %s", e.Reason)
}

// InvalidExportStructureError indicates a merge input is missing a required
// top-level collection. Detected eagerly before any merge work begins.
type InvalidExportStructureError struct {
	Side  string // "target" or "source"
	Field string // "markers" or "photos"
}

func (e *InvalidExportStructureError) Error() string {
	return fmt.Sprintf("%s export is missing required %q collection", e.Side, e.Field)
}
