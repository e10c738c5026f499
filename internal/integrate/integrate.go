// Package integrate computes depth-band volume integrals over MPAS
// vertical layers.
//
// Shallow is layers [0, k1), mid is [k1+1, k2) and deep is [k2+1, kbottom).
// The layers at k1, k2 and kbottom belong to no band; BoundaryLayers
// reports them. When both thresholds fall in the same layer k1 == k2 and
// the mid band is empty.
package integrate

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// CutIndex returns the last layer index before depths crosses threshold:
// the first layer deeper than threshold, minus one. It fails when no layer
// is deeper than threshold or when the first layer already is.
func CutIndex(depths []float64, threshold float64) (int, error) {
	i := sort.Search(len(depths), func(i int) bool { return depths[i] > threshold })
	if i == len(depths) {
		return 0, diagerr.Configf("integrate: no layer deeper than %g m (deepest is %g m)", threshold, last(depths))
	}
	if i == 0 {
		return 0, diagerr.Configf("integrate: first layer (%g m) is already deeper than %g m", depths[0], threshold)
	}
	return i - 1, nil
}

// CutPoints partitions layers into shallow, mid and deep bands.
type CutPoints struct {
	Shallow int // k1
	Mid     int // k2
	Bottom  int // kbottom, the last layer
}

// NewCutPoints computes k1 and k2 for thresholds d1 < d2 over a weakly
// increasing depth profile.
func NewCutPoints(depths []float64, d1, d2 float64) (CutPoints, error) {
	if len(depths) == 0 {
		return CutPoints{}, diagerr.Configf("integrate: empty depth profile")
	}
	if !(d1 < d2) {
		return CutPoints{}, diagerr.Configf("integrate: band thresholds must increase, got %g and %g", d1, d2)
	}
	for i := 1; i < len(depths); i++ {
		if depths[i] < depths[i-1] {
			return CutPoints{}, diagerr.Configf("integrate: depth profile decreases at layer %d", i)
		}
	}

	k1, err := CutIndex(depths, d1)
	if err != nil {
		return CutPoints{}, err
	}
	k2, err := CutIndex(depths, d2)
	if err != nil {
		return CutPoints{}, err
	}
	return CutPoints{Shallow: k1, Mid: k2, Bottom: len(depths) - 1}, nil
}

// Band is a half-open layer range [From, To).
type Band struct {
	From, To int
}

// Bands returns the total, shallow, mid and deep layer ranges.
func (c CutPoints) Bands() (total, shallow, mid, deep Band) {
	return Band{0, c.Bottom + 1},
		Band{0, c.Shallow},
		Band{c.Shallow + 1, c.Mid},
		Band{c.Mid + 1, c.Bottom}
}

// BoundaryLayers are the layers no band includes, ascending and without
// repeats.
func (c CutPoints) BoundaryLayers() []int {
	out := []int{c.Shallow}
	for _, k := range []int{c.Mid, c.Bottom} {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}

// Cube is a row-major (time × region × layer) array.
type Cube struct {
	NTime, NRegion, NLayer int
	Data                   []float64
}

// NewCube checks that data has nTime*nRegion*nLayer elements.
func NewCube(nTime, nRegion, nLayer int, data []float64) (*Cube, error) {
	if nTime*nRegion*nLayer != len(data) {
		return nil, diagerr.Dataf("integrate: cube %dx%dx%d needs %d values, got %d",
			nTime, nRegion, nLayer, nTime*nRegion*nLayer, len(data))
	}
	return &Cube{NTime: nTime, NRegion: nRegion, NLayer: nLayer, Data: data}, nil
}

// CubeFromField views a (time, region, layer) field as a Cube without
// copying.
func CubeFromField(f *dataset.Field) (*Cube, error) {
	if len(f.Shape) != 3 {
		return nil, diagerr.Dataf("integrate: %s has shape %v, want (time, region, layer)", f.Name, f.Shape)
	}
	return NewCube(f.Shape[0], f.Shape[1], f.Shape[2], f.Data)
}

// Profile returns the layer values at time t and region r.
func (c *Cube) Profile(t, r int) []float64 {
	off := (t*c.NRegion + r) * c.NLayer
	return c.Data[off : off+c.NLayer]
}

func (c *Cube) sameShape(o *Cube) bool {
	return c.NTime == o.NTime && c.NRegion == o.NRegion && c.NLayer == o.NLayer
}

// VolumeWeights multiplies region mask fraction, layer area and layer
// thickness element by element. All three must have the same shape.
func VolumeWeights(mask, area, thickness *Cube) (*Cube, error) {
	if !mask.sameShape(area) || !mask.sameShape(thickness) {
		return nil, diagerr.Dataf("integrate: volume weight shapes differ: mask %dx%dx%d, area %dx%dx%d, thickness %dx%dx%d",
			mask.NTime, mask.NRegion, mask.NLayer,
			area.NTime, area.NRegion, area.NLayer,
			thickness.NTime, thickness.NRegion, thickness.NLayer)
	}
	out := make([]float64, len(mask.Data))
	floats.MulTo(out, mask.Data, area.Data)
	floats.Mul(out, thickness.Data)
	return &Cube{NTime: mask.NTime, NRegion: mask.NRegion, NLayer: mask.NLayer, Data: out}, nil
}

// Result holds per-time band sums for one region.
type Result struct {
	Total   []float64
	Shallow []float64
	Mid     []float64
	Deep    []float64
}

// Integrate sums quantity × weight over each band for region, per time
// step, and multiplies by scale.
func Integrate(quantity, weight *Cube, region int, cuts CutPoints, scale float64) (*Result, error) {
	if !quantity.sameShape(weight) {
		return nil, diagerr.Dataf("integrate: quantity %dx%dx%d and weight %dx%dx%d differ in shape",
			quantity.NTime, quantity.NRegion, quantity.NLayer, weight.NTime, weight.NRegion, weight.NLayer)
	}
	if region < 0 || region >= quantity.NRegion {
		return nil, diagerr.Configf("integrate: region index %d out of range [0,%d)", region, quantity.NRegion)
	}
	if cuts.Bottom != quantity.NLayer-1 {
		return nil, diagerr.Dataf("integrate: cut points are for %d layers, data has %d", cuts.Bottom+1, quantity.NLayer)
	}

	total, shallow, mid, deep := cuts.Bands()
	res := &Result{
		Total:   make([]float64, quantity.NTime),
		Shallow: make([]float64, quantity.NTime),
		Mid:     make([]float64, quantity.NTime),
		Deep:    make([]float64, quantity.NTime),
	}
	for t := 0; t < quantity.NTime; t++ {
		q, w := quantity.Profile(t, region), weight.Profile(t, region)
		res.Total[t] = scale * BandSum(q, w, total)
		res.Shallow[t] = scale * BandSum(q, w, shallow)
		res.Mid[t] = scale * BandSum(q, w, mid)
		res.Deep[t] = scale * BandSum(q, w, deep)
	}
	return res, nil
}

// BandSum is Σ q[k]·w[k] over k in b.
func BandSum(q, w []float64, b Band) float64 {
	if b.To <= b.From {
		return 0
	}
	return floats.Dot(q[b.From:b.To], w[b.From:b.To])
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
