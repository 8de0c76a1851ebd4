// Package gaussian implements Gaussian (normal) random variables as a
// first-class value type, scalar or vector, with the operations the
// Kalman-style fair-price estimator and execution strategy need:
// intersection (Bayesian PDF product), independent sum, scaling, an
// approximate product of independent variables, density/distribution
// evaluation, Mahalanobis distance, and the gradient of log-density.
//
// Covariances are stored densely and combined via their pseudo-inverse
// (through an eigendecomposition) so that singular or rank-deficient covariances — which
// arise naturally once per-pair variance goes to infinity before warmup —
// never panic.
package gaussian

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDimensionMismatch is returned when an operation combines Gaussians of
// different dimension.
var ErrDimensionMismatch = errors.New("gaussian: dimension mismatch")

const pinvTol = 1e-10

// Gaussian is an n-dimensional Gaussian random variable with mean vector
// Mean and covariance matrix Cov (symmetric positive semi-definite).
type Gaussian struct {
	mean []float64
	cov  *mat.SymDense // n x n, nil/zero-size for the zero-dimensional Gaussian
}

// Zero returns the zero-dimensional Gaussian (the identity of Sum and the
// empty-input case of Intersect).
func Zero() Gaussian { return Gaussian{} }

// NewScalar builds a 1-dimensional Gaussian.
func NewScalar(mean, variance float64) Gaussian {
	return Gaussian{mean: []float64{mean}, cov: mat.NewSymDense(1, []float64{variance})}
}

// New builds an n-dimensional Gaussian from a mean vector and a dense,
// symmetric covariance matrix (row-major, n*n entries).
func New(mean []float64, cov []float64) (Gaussian, error) {
	n := len(mean)
	if len(cov) != n*n {
		return Gaussian{}, ErrDimensionMismatch
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, cov[i*n+j])
		}
	}
	return Gaussian{mean: append([]float64(nil), mean...), cov: sym}, nil
}

// Diagonal builds an n-dimensional Gaussian with a diagonal covariance,
// given per-dimension variances. This is the shape the Kalman strategy
// actually produces: cross-pair correlation never appears as off-diagonal
// covariance, only as an input to the per-pair mean prediction.
func Diagonal(mean, variance []float64) (Gaussian, error) {
	if len(mean) != len(variance) {
		return Gaussian{}, ErrDimensionMismatch
	}
	n := len(mean)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, variance[i])
	}
	return Gaussian{mean: append([]float64(nil), mean...), cov: sym}, nil
}

// Dim returns the dimensionality of g.
func (g Gaussian) Dim() int { return len(g.mean) }

// Mean returns a copy of the mean vector.
func (g Gaussian) Mean() []float64 { return append([]float64(nil), g.mean...) }

// MeanAt returns the i-th component of the mean.
func (g Gaussian) MeanAt(i int) float64 { return g.mean[i] }

// Variance returns the diagonal of the covariance matrix.
func (g Gaussian) Variance() []float64 {
	n := g.Dim()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = g.cov.At(i, i)
	}
	return out
}

// Stddev returns the per-dimension standard deviation (sqrt of the
// covariance diagonal).
func (g Gaussian) Stddev() []float64 {
	v := g.Variance()
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Sqrt(x)
	}
	return out
}

// CovAt returns the (i,j) covariance entry.
func (g Gaussian) CovAt(i, j int) float64 { return g.cov.At(i, j) }

// Scalar helpers, valid only for Dim()==1.

func (g Gaussian) ScalarMean() float64   { return g.mean[0] }
func (g Gaussian) ScalarVariance() float64 { return g.cov.At(0, 0) }
func (g Gaussian) ScalarStddev() float64 { return math.Sqrt(g.ScalarVariance()) }

// AddScalar shifts the mean by delta, leaving the covariance unchanged.
func (g Gaussian) AddScalar(delta float64) Gaussian {
	out := make([]float64, g.Dim())
	for i := range out {
		out[i] = g.mean[i] + delta
	}
	return Gaussian{mean: out, cov: g.cov}
}

// AddVector shifts the mean component-wise by delta.
func (g Gaussian) AddVector(delta []float64) (Gaussian, error) {
	if len(delta) != g.Dim() {
		return Gaussian{}, ErrDimensionMismatch
	}
	out := make([]float64, g.Dim())
	for i := range out {
		out[i] = g.mean[i] + delta[i]
	}
	return Gaussian{mean: out, cov: g.cov}, nil
}

// Scale multiplies by a per-dimension scale vector s: mean <- mean*s,
// cov <- diag(s) cov diag(s).
func (g Gaussian) Scale(s []float64) (Gaussian, error) {
	n := g.Dim()
	if len(s) != n {
		return Gaussian{}, ErrDimensionMismatch
	}
	mean := make([]float64, n)
	for i := range mean {
		mean[i] = g.mean[i] * s[i]
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, g.cov.At(i, j)*s[i]*s[j])
		}
	}
	return Gaussian{mean: mean, cov: sym}, nil
}

// Sum returns the distribution of the independent sum of xs: means add,
// covariances add. Sum of a single element equals that element; Sum of no
// elements is the zero-dimensional Gaussian.
func Sum(xs []Gaussian) (Gaussian, error) {
	if len(xs) == 0 {
		return Zero(), nil
	}
	n := xs[0].Dim()
	mean := make([]float64, n)
	sym := mat.NewSymDense(n, nil)
	for _, g := range xs {
		if g.Dim() != n {
			return Gaussian{}, ErrDimensionMismatch
		}
		for i := 0; i < n; i++ {
			mean[i] += g.mean[i]
			for j := i; j < n; j++ {
				sym.SetSym(i, j, sym.At(i, j)+g.cov.At(i, j))
			}
		}
	}
	return Gaussian{mean: mean, cov: sym}, nil
}

// AddGaussian returns the independent sum of g and h (means add,
// covariances add).
func (g Gaussian) AddGaussian(h Gaussian) (Gaussian, error) {
	return Sum([]Gaussian{g, h})
}

// Intersect combines xs by multiplying their PDFs and renormalizing —
// equivalently, precision-weighted (inverse-variance-weighted) fusion. It
// is associative and commutative, so folding pairwise gives the same
// result as the closed-form N-way formula. Intersect of a single element
// equals that element; of zero elements returns the zero-dimensional
// Gaussian.
func Intersect(xs []Gaussian) (Gaussian, error) {
	if len(xs) == 0 {
		return Zero(), nil
	}
	n := xs[0].Dim()
	if n == 0 {
		return Zero(), nil
	}

	precisionSum := mat.NewSymDense(n, nil)
	weightedMean := mat.NewVecDense(n, nil)

	for _, g := range xs {
		if g.Dim() != n {
			return Gaussian{}, ErrDimensionMismatch
		}
		precision := pseudoInverseSym(g.cov)
		var pm mat.VecDense
		pm.MulVec(precision, mat.NewVecDense(n, g.mean))

		for i := 0; i < n; i++ {
			weightedMean.SetVec(i, weightedMean.AtVec(i)+pm.AtVec(i))
			for j := i; j < n; j++ {
				precisionSum.SetSym(i, j, precisionSum.At(i, j)+precision.At(i, j))
			}
		}
	}

	cov := pseudoInverseSym(precisionSum)
	var meanVec mat.VecDense
	meanVec.MulVec(cov, weightedMean)

	mean := make([]float64, n)
	for i := 0; i < n; i++ {
		mean[i] = meanVec.AtVec(i)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, cov.At(i, j))
		}
	}
	// A dimension on which every input has infinite variance keeps
	// infinite variance and the first input's mean.
	for i := 0; i < n; i++ {
		uninformed := true
		for _, g := range xs {
			if !math.IsInf(g.cov.At(i, i), 1) {
				uninformed = false
				break
			}
		}
		if uninformed {
			mean[i] = xs[0].mean[i]
			sym.SetSym(i, i, math.Inf(1))
		}
	}
	return Gaussian{mean: mean, cov: sym}, nil
}

// And is binary intersect, g & h.
func (g Gaussian) And(h Gaussian) (Gaussian, error) {
	return Intersect([]Gaussian{g, h})
}

// Product approximates the distribution of the element-wise product of two
// independent Gaussians (valid for diagonal covariance; off-diagonal terms
// of g and h are ignored). mean = mean_g*mean_h (elementwise); variance =
// (var_g+mean_h^2)(var_h+mean_g^2) - mean_g^2*mean_h^2.
func (g Gaussian) Product(h Gaussian) (Gaussian, error) {
	n := g.Dim()
	if h.Dim() != n {
		return Gaussian{}, ErrDimensionMismatch
	}
	mean := make([]float64, n)
	variance := make([]float64, n)
	gv, hv := g.Variance(), h.Variance()
	for i := 0; i < n; i++ {
		mg, mh := g.mean[i], h.mean[i]
		mean[i] = mg * mh
		variance[i] = (gv[i]+mh*mh)*(hv[i]+mg*mg) - mg*mg*mh*mh
	}
	return Diagonal(mean, variance)
}

// PDF evaluates the multivariate normal density at x.
func (g Gaussian) PDF(x []float64) (float64, error) {
	n := g.Dim()
	if len(x) != n {
		return 0, ErrDimensionMismatch
	}
	precision := pseudoInverseSym(g.cov)
	diff := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		diff.SetVec(i, x[i]-g.mean[i])
	}
	var tmp mat.VecDense
	tmp.MulVec(precision, diff)
	mahal := mat.Dot(diff, &tmp)

	det := matDet(g.cov)
	if det <= 0 {
		det = pinvTol
	}
	norm := 1.0 / math.Sqrt(math.Pow(2*math.Pi, float64(n))*det)
	return norm * math.Exp(-0.5*mahal), nil
}

// CDF evaluates the CDF at b for a 1-dimensional Gaussian (scalar case),
// or the probability mass in [a,b] when a is also given.
func (g Gaussian) CDF(b float64, a ...float64) (float64, error) {
	if g.Dim() != 1 {
		return 0, errors.New("gaussian: CDF only supports 1-dimensional Gaussians")
	}
	dist := distuv.Normal{Mu: g.mean[0], Sigma: g.ScalarStddev()}
	if len(a) == 0 {
		return dist.CDF(b), nil
	}
	return dist.CDF(b) - dist.CDF(a[0]), nil
}

// ZScore returns the Mahalanobis distance of x from g's mean, using the
// pseudo-inverse of the covariance.
func (g Gaussian) ZScore(x []float64) (float64, error) {
	n := g.Dim()
	if len(x) != n {
		return 0, ErrDimensionMismatch
	}
	precision := pseudoInverseSym(g.cov)
	diff := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		diff.SetVec(i, x[i]-g.mean[i])
	}
	var tmp mat.VecDense
	tmp.MulVec(precision, diff)
	mahal := mat.Dot(diff, &tmp)
	if mahal < 0 {
		mahal = 0
	}
	return math.Sqrt(mahal), nil
}

// Gradient returns grad_x log p(x) = -precision*(x-mean), the direction
// that increases likelihood fastest. The result is not normalised; at
// x == mean it is the zero vector.
func (g Gaussian) Gradient(x []float64) ([]float64, error) {
	n := g.Dim()
	if len(x) != n {
		return nil, ErrDimensionMismatch
	}
	precision := pseudoInverseSym(g.cov)
	diff := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		diff.SetVec(i, x[i]-g.mean[i])
	}
	var grad mat.VecDense
	grad.MulVec(precision, diff)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = -grad.AtVec(i)
	}
	return out, nil
}

// pseudoInverseSym computes the Moore-Penrose pseudo-inverse of a symmetric
// matrix via its eigendecomposition, clamping near-zero eigenvalues to zero
// so singular or rank-deficient covariances (e.g. +Inf variance before
// warmup, collapsed to 0 precision) never panic.
func pseudoInverseSym(a *mat.SymDense) *mat.SymDense {
	n := a.SymmetricDim()

	// Diagonal matrices (by far the common case: every Gaussian the Kalman
	// estimator builds is diagonal, and warmup covariances carry literal
	// +Inf entries) are inverted directly termwise. General eigendecomposition
	// of a matrix containing +Inf is not reliable, and the elementwise
	// pseudo-inverse of a diagonal matrix is exact regardless.
	if isDiagonal(a, n) {
		out := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			v := a.At(i, i)
			switch {
			case math.IsInf(v, 1) || math.IsInf(v, -1):
				out.SetSym(i, i, 0)
			case math.Abs(v) < pinvTol:
				out.SetSym(i, i, 0)
			default:
				out.SetSym(i, i, 1/v)
			}
		}
		return out
	}

	var eig mat.EigenSym
	ok := eig.Factorize(a, true)
	if !ok {
		return mat.NewSymDense(n, nil)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	out := mat.NewSymDense(n, nil)
	for k, lambda := range values {
		if math.Abs(lambda) < pinvTol {
			continue
		}
		inv := 1.0 / lambda
		for i := 0; i < n; i++ {
			vi := vectors.At(i, k)
			if vi == 0 {
				continue
			}
			for j := i; j < n; j++ {
				out.SetSym(i, j, out.At(i, j)+inv*vi*vectors.At(j, k))
			}
		}
	}
	return out
}

func isDiagonal(a *mat.SymDense, n int) bool {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if a.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

func matDet(a *mat.SymDense) float64 {
	n := a.SymmetricDim()
	if isDiagonal(a, n) {
		det := 1.0
		for i := 0; i < n; i++ {
			v := a.At(i, i)
			if math.IsInf(v, 1) {
				return math.Inf(1)
			}
			if v < pinvTol {
				v = pinvTol
			}
			det *= v
		}
		return det
	}
	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return 0
	}
	values := eig.Values(nil)
	det := 1.0
	for i := 0; i < n; i++ {
		v := values[i]
		if v < pinvTol {
			v = pinvTol
		}
		det *= v
	}
	return det
}
