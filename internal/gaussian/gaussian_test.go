package gaussian

import "testing"

const epsilon = 1e-3

func floatEquals(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestIntersectThreeScalars(t *testing.T) {
	g, err := Intersect([]Gaussian{
		NewScalar(3, 5),
		NewScalar(4, 15),
		NewScalar(5, 25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantMean := 80.0 / 23.0
	wantVar := 75.0 / 23.0
	if !floatEquals(g.ScalarMean(), wantMean, epsilon) {
		t.Errorf("mean = %v, want %v", g.ScalarMean(), wantMean)
	}
	if !floatEquals(g.ScalarVariance(), wantVar, epsilon) {
		t.Errorf("variance = %v, want %v", g.ScalarVariance(), wantVar)
	}
}

func TestIntersectSingleElementIsIdentity(t *testing.T) {
	in := NewScalar(10, 2)
	g, err := Intersect([]Gaussian{in})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(g.ScalarMean(), 10, epsilon) || !floatEquals(g.ScalarVariance(), 2, epsilon) {
		t.Fatalf("got N(%v,%v), want N(10,2)", g.ScalarMean(), g.ScalarVariance())
	}
}

func TestIntersectCovarianceNeverExceedsInputs(t *testing.T) {
	g, err := Intersect([]Gaussian{NewScalar(3, 5), NewScalar(4, 15)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ScalarVariance() > 5 {
		t.Fatalf("intersect variance %v exceeds smallest input variance 5", g.ScalarVariance())
	}
}

func TestIntersectWithVeryWidePriorApproximatesOther(t *testing.T) {
	prior := NewScalar(0, 1e12)
	informed := NewScalar(7, 1)
	g, err := Intersect([]Gaussian{prior, informed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(g.ScalarMean(), 7, 1e-3) {
		t.Fatalf("mean = %v, want ~7", g.ScalarMean())
	}
	if !floatEquals(g.ScalarVariance(), 1, 1e-3) {
		t.Fatalf("variance = %v, want ~1", g.ScalarVariance())
	}
}

func TestSumAddsMeansAndVariances(t *testing.T) {
	g, err := Sum([]Gaussian{NewScalar(1, 2), NewScalar(3, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(g.ScalarMean(), 4, epsilon) {
		t.Errorf("mean = %v, want 4", g.ScalarMean())
	}
	if !floatEquals(g.ScalarVariance(), 6, epsilon) {
		t.Errorf("variance = %v, want 6", g.ScalarVariance())
	}
}

func TestSumSingleElementIsIdentity(t *testing.T) {
	g, err := Sum([]Gaussian{NewScalar(5, 9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(g.ScalarMean(), 5, epsilon) || !floatEquals(g.ScalarVariance(), 9, epsilon) {
		t.Fatalf("got N(%v,%v), want N(5,9)", g.ScalarMean(), g.ScalarVariance())
	}
}

func TestAddScalarShiftsMeanOnly(t *testing.T) {
	g := NewScalar(2, 3).AddScalar(10)
	if !floatEquals(g.ScalarMean(), 12, epsilon) {
		t.Errorf("mean = %v, want 12", g.ScalarMean())
	}
	if !floatEquals(g.ScalarVariance(), 3, epsilon) {
		t.Errorf("variance = %v, want unchanged 3", g.ScalarVariance())
	}
}

func TestScaleVector(t *testing.T) {
	g, err := Diagonal([]float64{2, 3}, []float64{4, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scaled, err := g.Scale([]float64{2, -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mean := scaled.Mean()
	if !floatEquals(mean[0], 4, epsilon) || !floatEquals(mean[1], -3, epsilon) {
		t.Fatalf("mean = %v, want [4 -3]", mean)
	}
	variance := scaled.Variance()
	if !floatEquals(variance[0], 16, epsilon) || !floatEquals(variance[1], 9, epsilon) {
		t.Fatalf("variance = %v, want [16 9]", variance)
	}
}

func TestPDFPeaksAtMean(t *testing.T) {
	g := NewScalar(0, 1)
	atMean, err := g.PDF([]float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	offMean, err := g.PDF([]float64{3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atMean <= offMean {
		t.Fatalf("PDF at mean (%v) should exceed PDF away from mean (%v)", atMean, offMean)
	}
}

func TestCDFOfMeanIsOneHalf(t *testing.T) {
	g := NewScalar(5, 4)
	p, err := g.CDF(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(p, 0.5, epsilon) {
		t.Errorf("CDF(mean) = %v, want 0.5", p)
	}
}

func TestZScoreOfMeanIsZero(t *testing.T) {
	g := NewScalar(5, 4)
	z, err := g.ZScore([]float64{5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(z, 0, epsilon) {
		t.Errorf("ZScore(mean) = %v, want 0", z)
	}
}

func TestZScoreScalesWithStddev(t *testing.T) {
	g := NewScalar(0, 4) // stddev 2
	z, err := g.ZScore([]float64{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(z, 1, epsilon) {
		t.Errorf("ZScore(1 stddev away) = %v, want 1", z)
	}
}

func TestGradientPointsTowardMean(t *testing.T) {
	g := NewScalar(0, 1)
	grad, err := g.Gradient([]float64{3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grad[0] >= 0 {
		t.Fatalf("gradient at x=3 > mean=0 should point negative (toward mean), got %v", grad[0])
	}
}

func TestProductOfIndependentMeansMultiply(t *testing.T) {
	g, err := NewScalar(2, 0).Product(NewScalar(3, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEquals(g.ScalarMean(), 6, epsilon) {
		t.Errorf("mean = %v, want 6", g.ScalarMean())
	}
}

func TestDimensionMismatchErrors(t *testing.T) {
	a := NewScalar(0, 1)
	b, _ := Diagonal([]float64{0, 0}, []float64{1, 1})
	if _, err := a.And(b); err != ErrDimensionMismatch {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
	if _, err := a.AddGaussian(b); err != ErrDimensionMismatch {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}
