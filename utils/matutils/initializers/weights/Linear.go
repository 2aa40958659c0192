package weights

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearUV initializes a matrix of weights drawn element-wise from a
// univariate distribution
type LinearUV struct {
	distuv.Rander
}

// NewLinearUV creates and returns a new LinearUV
func NewLinearUV(rand distuv.Rander) LinearUV {
	if rand == nil {
		panic("rand cannot be nil")
	}
	return LinearUV{rand}
}

// Initialize initializes a matrix of weights using values drawn from
// a univariate distribution
func (l LinearUV) Initialize(weights *mat.Dense) {
	if weights == nil {
		return
	}

	backingData := weights.RawMatrix().Data
	for i := range backingData {
		backingData[i] = l.Rand()
	}
}

// GlorotU initializes a matrix of weights with the Glorot Uniform
// scheme, drawing from U(-g·sqrt(6/(fanIn+fanOut)), +g·...) where the
// fans are the matrix dimensions.
type GlorotU struct {
	Gain float64
	Src  distuv.Uniform
}

// NewGlorotU returns a new Glorot Uniform initializer drawing from
// src, which must be a Uniform on [0, 1)
func NewGlorotU(gain float64, src distuv.Uniform) GlorotU {
	return GlorotU{Gain: gain, Src: src}
}

// Initialize initializes a matrix of weights
func (g GlorotU) Initialize(weights *mat.Dense) {
	if weights == nil {
		return
	}

	r, c := weights.Dims()
	scale := g.Gain * math.Sqrt(6.0/float64(r+c))

	backingData := weights.RawMatrix().Data
	for i := range backingData {
		backingData[i] = (2*g.Src.Rand() - 1) * scale
	}
}
