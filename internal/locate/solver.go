package locate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateGeometry is returned when the anchor layout cannot pin
// down a position: coincident or colinear anchors, or a single usable
// range pair. Callers are expected to fall back to the zero position.
var ErrDegenerateGeometry = errors.New("locate: degenerate anchor geometry")

// Solver estimates a tag position from valid anchor/distance pairs.
// anchors and dists are parallel and of equal length.
type Solver interface {
	Solve(anchors []Anchor, dists []float64) (Position, error)
}

// LeastSquares solves multilateration as a linear least-squares
// problem. Subtracting the squared-range equation of the first anchor
// from each of the others cancels the quadratic term in the unknown
// position p, leaving
//
//	2·(aᵢ − a₀)ᵀ p = d₀² − dᵢ² + |aᵢ|² − |a₀|²
//
// i.e. an (N−1)×3 system solved by truncated SVD. The same path serves
// every N ≥ 2; there is no closed-form special case for N == 3.
type LeastSquares struct {
	// RankCutoff scales the largest singular value to the threshold
	// below which singular values are treated as zero. Zero means the
	// default of 1e-9.
	RankCutoff float64
}

func (ls LeastSquares) Solve(anchors []Anchor, dists []float64) (Position, error) {
	if len(anchors) != len(dists) {
		return Position{}, fmt.Errorf("locate: %d anchors but %d distances", len(anchors), len(dists))
	}
	// Too few ranges to disambiguate anything. Expected during normal
	// operation (anchor dropout), so not an error.
	if len(anchors) < 2 {
		return Position{}, nil
	}

	n := len(anchors)
	ref := anchors[0]
	refSq := ref.X*ref.X + ref.Y*ref.Y + ref.Z*ref.Z

	a := mat.NewDense(n-1, 3, nil)
	b := mat.NewVecDense(n-1, nil)
	for i := 1; i < n; i++ {
		ai := anchors[i]
		a.Set(i-1, 0, 2*(ai.X-ref.X))
		a.Set(i-1, 1, 2*(ai.Y-ref.Y))
		a.Set(i-1, 2, 2*(ai.Z-ref.Z))
		aiSq := ai.X*ai.X + ai.Y*ai.Y + ai.Z*ai.Z
		b.SetVec(i-1, dists[0]*dists[0]-dists[i]*dists[i]+aiSq-refSq)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return Position{}, fmt.Errorf("locate: svd factorization failed")
	}

	cutoff := ls.RankCutoff
	if cutoff == 0 {
		cutoff = 1e-9
	}
	values := svd.Values(nil)
	rank := 0
	for _, sv := range values {
		if sv > cutoff*values[0] {
			rank++
		}
	}
	// Rank 1 means every anchor baseline points the same way (or only
	// one equation exists): the solution set is a plane or worse.
	if rank < 2 {
		return Position{}, ErrDegenerateGeometry
	}

	var p mat.VecDense
	svd.SolveVecTo(&p, b, rank)
	return Position{p.AtVec(0), p.AtVec(1), p.AtVec(2)}, nil
}
