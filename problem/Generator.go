package problem

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"
)

// GeneratorConfig describes the distribution a Generator draws
// instances from. Zero-valued bounds select the unit square and the
// conventional integer demand range.
type GeneratorConfig struct {
	Variant  Variant
	Size     int
	Capacity float64 // 0 selects the conventional capacity for Size

	CoordBounds  r1.Interval
	DemandBounds r1.Interval
}

// capacityFor returns the conventional vehicle capacity for a graph
// size, following the usual benchmark settings
func capacityFor(size int) float64 {
	switch {
	case size <= 20:
		return 30
	case size <= 50:
		return 40
	default:
		return 50
	}
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.Capacity == 0 {
		c.Capacity = capacityFor(c.Size)
	}
	if c.CoordBounds == (r1.Interval{}) {
		c.CoordBounds = r1.Interval{Min: 0, Max: 1}
	}
	if c.DemandBounds == (r1.Interval{}) {
		c.DemandBounds = r1.Interval{Min: 1, Max: 9}
	}
	return c
}

// Validate rejects inconsistent generator parameters before any
// instance is drawn
func (c GeneratorConfig) Validate() error {
	c = c.withDefaults()
	if !c.Variant.Valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "unknown variant %q",
			c.Variant)
	}
	if c.Size < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "size %v must be at "+
			"least 2", c.Size)
	}
	if c.Variant == NVTA && c.Size%2 != 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "NVTA needs an even "+
			"size, got %v", c.Size)
	}
	if c.Capacity < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "capacity %v must not "+
			"be negative", c.Capacity)
	}
	if c.CoordBounds.Min > c.CoordBounds.Max {
		return errors.Wrapf(ErrInvalidConfiguration, "empty coordinate "+
			"interval [%v, %v]", c.CoordBounds.Min, c.CoordBounds.Max)
	}
	if c.DemandBounds.Min > c.DemandBounds.Max || c.DemandBounds.Min <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "demand interval "+
			"[%v, %v] must be positive", c.DemandBounds.Min, c.DemandBounds.Max)
	}
	if c.DemandBounds.Max > c.Capacity {
		return errors.Wrapf(ErrInvalidConfiguration, "maximum demand %v "+
			"exceeds vehicle capacity %v", c.DemandBounds.Max, c.Capacity)
	}
	return nil
}

// Generator synthesizes random problem instances of a fixed size and
// variant. All randomness flows through the seeded source handed to
// NewGenerator, so runs are reproducible.
type Generator struct {
	conf   GeneratorConfig
	coord  distuv.Uniform
	demand distuv.Uniform
}

// NewGenerator returns a new Generator for the configured size and
// variant, drawing from a source seeded with seed.
func NewGenerator(conf GeneratorConfig, seed uint64) (*Generator, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "newGenerator")
	}
	conf = conf.withDefaults()

	src := rand.NewSource(seed)
	return &Generator{
		conf: conf,
		coord: distuv.Uniform{
			Min: conf.CoordBounds.Min,
			Max: conf.CoordBounds.Max,
			Src: src,
		},
		demand: distuv.Uniform{
			Min: conf.DemandBounds.Min,
			Max: conf.DemandBounds.Max,
			Src: src,
		},
	}, nil
}

// Instance draws a single problem instance
func (g *Generator) Instance() *Instance {
	numNodes := g.conf.Size + 1
	in := &Instance{
		Variant:  g.conf.Variant,
		Coords:   make([][2]float64, numNodes),
		Demands:  make([]float64, numNodes),
		Capacity: g.conf.Capacity,
	}

	for node := 0; node < numNodes; node++ {
		in.Coords[node][0] = g.coord.Rand()
		in.Coords[node][1] = g.coord.Rand()
	}

	switch g.conf.Variant {
	case NVRP:
		for node := 1; node < numNodes; node++ {
			in.Demands[node] = float64(int(g.demand.Rand()))
			if in.Demands[node] < 1 {
				in.Demands[node] = 1
			}
		}

	case NVTA:
		// A pickup adds its demand to the running load, its delivery
		// removes it again.
		half := g.conf.Size / 2
		for pickup := 1; pickup <= half; pickup++ {
			d := float64(int(g.demand.Rand()))
			if d < 1 {
				d = 1
			}
			in.Demands[pickup] = d
			in.Demands[pickup+half] = -d
		}
	}

	return in
}

// Batch draws n instances
func (g *Generator) Batch(n int) []*Instance {
	batch := make([]*Instance, n)
	for i := range batch {
		batch[i] = g.Instance()
	}
	return batch
}

// Size returns the configured graph size
func (g *Generator) Size() int {
	return g.conf.Size
}

// Variant returns the configured problem variant
func (g *Generator) Variant() Variant {
	return g.conf.Variant
}
