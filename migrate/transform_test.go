package migrate

import (
	"math"
	"testing"
)

func TestFitExactPairs(t *testing.T) {
	m := AffineMatrix{A: 2, B: 0, C: 0, D: 2, Tx: 30, Ty: -10}
	src := []Point{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	dst := make([]Point, len(src))
	for i, p := range src {
		dst[i] = m.Apply(p)
	}

	ft, err := Fit(pairsFrom(src, dst))
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if ft.Quality.RMSE > epsilon {
		t.Errorf("RMSE = %v for exact pairs, want ~0", ft.Quality.RMSE)
	}
	if len(ft.Quality.Residuals) != len(src) {
		t.Errorf("len(Residuals) = %d, want %d", len(ft.Quality.Residuals), len(src))
	}
	if ft.Quality.MaxResidual > epsilon {
		t.Errorf("MaxResidual = %v for exact pairs, want ~0", ft.Quality.MaxResidual)
	}
	if !almostEqual(ft.Quality.ScaleX, 2) || !almostEqual(ft.Quality.ScaleY, 2) {
		t.Errorf("scale = (%v, %v), want (2, 2)", ft.Quality.ScaleX, ft.Quality.ScaleY)
	}
	if !almostEqual(ft.Quality.RotationDeg, 0) {
		t.Errorf("RotationDeg = %v, want 0", ft.Quality.RotationDeg)
	}
}

func TestFitRotationMetrics(t *testing.T) {
	// Pure 90 degree rotation: (x, y) -> (-y, x).
	m := AffineMatrix{A: 0, B: -1, C: 1, D: 0}
	src := []Point{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	dst := make([]Point, len(src))
	for i, p := range src {
		dst[i] = m.Apply(p)
	}

	ft, err := Fit(pairsFrom(src, dst))
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if !almostEqual(ft.Quality.ScaleX, 1) || !almostEqual(ft.Quality.ScaleY, 1) {
		t.Errorf("scale = (%v, %v), want (1, 1)", ft.Quality.ScaleX, ft.Quality.ScaleY)
	}
	if !almostEqual(ft.Quality.RotationDeg, 90) {
		t.Errorf("RotationDeg = %v, want 90", ft.Quality.RotationDeg)
	}
	if !almostEqual(ft.Quality.ScaleRatio(), 1) {
		t.Errorf("ScaleRatio() = %v, want 1", ft.Quality.ScaleRatio())
	}
}

func TestFitRMSEGrowsWithNoise(t *testing.T) {
	src := []Point{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	base := []Point{{10, 10}, {110, 10}, {10, 110}, {110, 110}}
	// A perturbation pattern no affine map can absorb.
	pattern := []Point{{1, 0}, {-1, 0}, {-1, 0}, {1, 0}}

	rmseAt := func(mag float64) float64 {
		dst := make([]Point, len(base))
		for i, p := range base {
			dst[i] = Point{X: p.X + mag*pattern[i].X, Y: p.Y + mag*pattern[i].Y}
		}
		ft, err := Fit(pairsFrom(src, dst))
		if err != nil {
			t.Fatalf("Fit(mag=%v) error = %v", mag, err)
		}
		return ft.Quality.RMSE
	}

	small, medium, large := rmseAt(0.5), rmseAt(2), rmseAt(8)
	if small <= 0 {
		t.Fatalf("RMSE = %v for perturbed pairs, want > 0", small)
	}
	if !(small < medium && medium < large) {
		t.Errorf("RMSE not monotonic in noise magnitude: %v, %v, %v", small, medium, large)
	}
}

func TestNormalizeAngleSigned(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{45, 45},
		{180, 180},
		{190, -170},
		{-180, 180},
		{-190, 170},
		{360, 0},
		{540, 180},
		{-360, 0},
	}
	for _, tt := range tests {
		if got := normalizeAngleSigned(tt.in); !almostEqual(got, tt.want) {
			t.Errorf("normalizeAngleSigned(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScaleRatio(t *testing.T) {
	if got := (FitQuality{ScaleX: 2, ScaleY: 1}).ScaleRatio(); !almostEqual(got, 2) {
		t.Errorf("ScaleRatio() = %v, want 2", got)
	}
	if got := (FitQuality{ScaleX: 1, ScaleY: 4}).ScaleRatio(); !almostEqual(got, 4) {
		t.Errorf("ScaleRatio() = %v, want 4", got)
	}
	if got := (FitQuality{ScaleX: 0, ScaleY: 1}).ScaleRatio(); !math.IsInf(got, 1) {
		t.Errorf("ScaleRatio() = %v, want +Inf", got)
	}
}

func TestValidate(t *testing.T) {
	opts := DefaultFitOptions()

	tests := []struct {
		name         string
		quality      FitQuality
		acceptable   bool
		wantWarnings int
	}{
		{
			name:         "clean fit",
			quality:      FitQuality{RMSE: 1.5, ScaleX: 1.0, ScaleY: 1.0},
			acceptable:   true,
			wantWarnings: 0,
		},
		{
			name:         "high rmse",
			quality:      FitQuality{RMSE: 25, ScaleX: 1.0, ScaleY: 1.0},
			acceptable:   false,
			wantWarnings: 1,
		},
		{
			name:         "anisotropic scale",
			quality:      FitQuality{RMSE: 1, ScaleX: 1.0, ScaleY: 1.5},
			acceptable:   false,
			wantWarnings: 1,
		},
		{
			name:         "anisotropic scale with rotation",
			quality:      FitQuality{RMSE: 1, ScaleX: 1.0, ScaleY: 1.5, RotationDeg: 12},
			acceptable:   false,
			wantWarnings: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(&FittedTransform{Quality: tt.quality}, opts)
			if report.IsAcceptable != tt.acceptable {
				t.Errorf("IsAcceptable = %v, want %v", report.IsAcceptable, tt.acceptable)
			}
			if len(report.Warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings %v, want %d", len(report.Warnings), report.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestSuggestedTolerance(t *testing.T) {
	opts := FitOptions{RMSEMultiplier: 2.5}
	if got := opts.SuggestedTolerance(FitQuality{RMSE: 4}); !almostEqual(got, 10) {
		t.Errorf("SuggestedTolerance() = %v, want 10", got)
	}
}

func TestApplyLinearity(t *testing.T) {
	m := AffineMatrix{A: 1.2, B: -0.3, C: 0.4, D: 0.9, Tx: 15, Ty: -7}

	// T(p+q) - T(p) - T(q) + T(0) must vanish for any affine T.
	p := Point{X: 12, Y: -5}
	q := Point{X: -3, Y: 44}
	sum := m.Apply(Point{X: p.X + q.X, Y: p.Y + q.Y})
	tp, tq, t0 := m.Apply(p), m.Apply(q), m.Apply(Point{})

	if !almostEqual(sum.X, tp.X+tq.X-t0.X) || !almostEqual(sum.Y, tp.Y+tq.Y-t0.Y) {
		t.Errorf("affine linearity violated: %v vs (%v, %v)",
			sum, tp.X+tq.X-t0.X, tp.Y+tq.Y-t0.Y)
	}
}

func TestApplyPropagatesNonFinite(t *testing.T) {
	m := Identity()
	got := m.Apply(Point{X: math.NaN(), Y: 3})
	if !math.IsNaN(got.X) {
		t.Errorf("NaN input did not propagate: %v", got)
	}
}

func TestApplyToMarkersDoesNotMutateInput(t *testing.T) {
	m := AffineMatrix{A: 1, D: 1, Tx: 100, Ty: 100}
	markers := []Marker{
		{ID: "m1", X: 10, Y: 20, Label: "Valve", PhotoIDs: []string{"p1", "p2"}},
		{ID: "m2", X: 30, Y: 40},
	}

	out := ApplyToMarkers(m, markers)

	if markers[0].X != 10 || markers[0].Y != 20 {
		t.Errorf("input marker mutated: %+v", markers[0])
	}
	if !almostEqual(out[0].X, 110) || !almostEqual(out[0].Y, 120) {
		t.Errorf("out[0] at (%v, %v), want (110, 120)", out[0].X, out[0].Y)
	}
	if out[0].ID != "m1" || out[0].Label != "Valve" {
		t.Errorf("non-coordinate fields not carried: %+v", out[0])
	}

	// PhotoIDs must be a deep copy.
	out[0].PhotoIDs[0] = "tampered"
	if markers[0].PhotoIDs[0] != "p1" {
		t.Error("PhotoIDs slice shared between input and output")
	}
}

func TestApplyToExport(t *testing.T) {
	m := AffineMatrix{A: 1, D: 1, Tx: 5, Ty: 5}
	e := NewExport()
	e.Markers = append(e.Markers, Marker{ID: "m1", X: 1, Y: 2})
	e.Photos = append(e.Photos, Photo{ID: "p1", MarkerID: "m1", FileName: "a.jpg"})

	out := ApplyToExport(m, e)

	if !almostEqual(out.Markers[0].X, 6) || !almostEqual(out.Markers[0].Y, 7) {
		t.Errorf("marker at (%v, %v), want (6, 7)", out.Markers[0].X, out.Markers[0].Y)
	}
	if e.Markers[0].X != 1 {
		t.Error("input export mutated")
	}
	if len(out.Photos) != 1 || out.Photos[0].FileName != "a.jpg" {
		t.Errorf("photos not carried: %+v", out.Photos)
	}
}

func BenchmarkFit(b *testing.B) {
	m := AffineMatrix{A: 1.01, B: 0.1, C: -0.1, D: 1.01, Tx: 20, Ty: 30}
	src := make([]Point, 12)
	dst := make([]Point, 12)
	for i := range src {
		src[i] = Point{X: float64(i * 37 % 200), Y: float64(i * 53 % 200)}
		dst[i] = m.Apply(src[i])
	}
	pairs := pairsFrom(src, dst)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Fit(pairs)
	}
}
