package integrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// refDepths is a 10-layer profile with boundaries around 700 m and 2000 m.
var refDepths = []float64{10, 50, 200, 500, 690, 900, 1500, 1990, 2500, 4000}

func TestCutIndex(t *testing.T) {
	tests := []struct {
		name      string
		depths    []float64
		threshold float64
		want      int
		wantErr   bool
	}{
		{name: "700m", depths: refDepths, threshold: 700, want: 4},
		{name: "2000m", depths: refDepths, threshold: 2000, want: 7},
		{name: "exact depth stays in band", depths: []float64{100, 700, 800}, threshold: 700, want: 1},
		{name: "repeated depths", depths: []float64{100, 100, 700, 700, 800}, threshold: 700, want: 3},
		{name: "too shallow", depths: []float64{10, 20, 30}, threshold: 700, wantErr: true},
		{name: "first layer too deep", depths: []float64{800, 900}, threshold: 700, wantErr: true},
		{name: "empty", depths: nil, threshold: 700, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CutIndex(tt.depths, tt.threshold)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, diagerr.IsConfig(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCutPoints(t *testing.T) {
	cuts, err := NewCutPoints(refDepths, 700, 2000)
	require.NoError(t, err)
	assert.Equal(t, CutPoints{Shallow: 4, Mid: 7, Bottom: 9}, cuts)
	assert.Equal(t, []int{4, 7, 9}, cuts.BoundaryLayers())

	total, shallow, mid, deep := cuts.Bands()
	assert.Equal(t, Band{0, 10}, total)
	assert.Equal(t, Band{0, 4}, shallow)
	assert.Equal(t, Band{5, 7}, mid)
	assert.Equal(t, Band{8, 9}, deep)
}

func TestNewCutPoints_Errors(t *testing.T) {
	tests := []struct {
		name   string
		depths []float64
		d1, d2 float64
	}{
		{name: "empty", depths: nil, d1: 700, d2: 2000},
		{name: "thresholds reversed", depths: refDepths, d1: 2000, d2: 700},
		{name: "equal thresholds", depths: refDepths, d1: 700, d2: 700},
		{name: "decreasing profile", depths: []float64{10, 800, 500, 3000}, d1: 700, d2: 2000},
		{name: "no layer below d2", depths: []float64{10, 500, 900, 1500}, d1: 700, d2: 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCutPoints(tt.depths, tt.d1, tt.d2)
			require.Error(t, err)
			assert.True(t, diagerr.IsConfig(err))
		})
	}
}

func TestNewCutPoints_ThresholdsInSameLayer(t *testing.T) {
	depths := []float64{10, 500, 2500, 3000}
	cuts, err := NewCutPoints(depths, 700, 2000)
	require.NoError(t, err)
	assert.Equal(t, CutPoints{Shallow: 1, Mid: 1, Bottom: 3}, cuts)
	assert.Equal(t, []int{1, 3}, cuts.BoundaryLayers())

	_, shallow, mid, deep := cuts.Bands()
	assert.Equal(t, Band{0, 1}, shallow)
	assert.Equal(t, Band{2, 1}, mid)
	assert.Equal(t, Band{2, 3}, deep)

	q := ramp(1, 1, 4, func(_, _, k int) float64 { return float64(k + 1) })
	w := ramp(1, 1, 4, func(int, int, int) float64 { return 1 })
	res, err := Integrate(q, w, 0, cuts, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, res.Total)
	assert.Equal(t, []float64{1}, res.Shallow)
	assert.Equal(t, []float64{0}, res.Mid)
	assert.Equal(t, []float64{3}, res.Deep)
}

func TestNewCutPoints_Ordering(t *testing.T) {
	profiles := [][]float64{
		refDepths,
		{5, 15, 25, 701, 1999, 2001},
		{0, 0, 100, 700, 700, 2000, 2000, 2001, 6000},
		{1, 699, 701, 2001},
	}
	for _, depths := range profiles {
		cuts, err := NewCutPoints(depths, 700, 2000)
		require.NoError(t, err, "%v", depths)
		assert.GreaterOrEqual(t, cuts.Shallow, 0)
		assert.Less(t, cuts.Shallow, cuts.Mid)
		assert.LessOrEqual(t, cuts.Mid, cuts.Bottom)
		assert.Equal(t, len(depths)-1, cuts.Bottom)
	}
}

func ramp(nTime, nRegion, nLayer int, f func(t, r, k int) float64) *Cube {
	data := make([]float64, 0, nTime*nRegion*nLayer)
	for t := 0; t < nTime; t++ {
		for r := 0; r < nRegion; r++ {
			for k := 0; k < nLayer; k++ {
				data = append(data, f(t, r, k))
			}
		}
	}
	c, _ := NewCube(nTime, nRegion, nLayer, data)
	return c
}

func TestIntegrate_Conservation(t *testing.T) {
	n := len(refDepths)
	cuts, err := NewCutPoints(refDepths, 700, 2000)
	require.NoError(t, err)

	q := ramp(3, 2, n, func(t, r, k int) float64 { return float64(t+1) + 0.5*float64(k) - float64(r) })
	w := ramp(3, 2, n, func(t, r, k int) float64 { return 1 + float64(k*k) })

	for region := 0; region < 2; region++ {
		res, err := Integrate(q, w, region, cuts, 2.5)
		require.NoError(t, err)
		require.Len(t, res.Total, 3)

		for ti := 0; ti < 3; ti++ {
			qp, wp := q.Profile(ti, region), w.Profile(ti, region)
			var boundary float64
			for _, k := range cuts.BoundaryLayers() {
				boundary += 2.5 * qp[k] * wp[k]
			}
			sum := res.Shallow[ti] + res.Mid[ti] + res.Deep[ti] + boundary
			assert.InDelta(t, res.Total[ti], sum, 1e-9)
		}
	}
}

func TestIntegrate_Errors(t *testing.T) {
	cuts := CutPoints{Shallow: 1, Mid: 2, Bottom: 3}
	q := ramp(1, 1, 4, func(int, int, int) float64 { return 1 })

	_, err := Integrate(q, ramp(1, 1, 5, func(int, int, int) float64 { return 1 }), 0, cuts, 1)
	assert.True(t, diagerr.IsData(err))

	_, err = Integrate(q, q, 1, cuts, 1)
	assert.True(t, diagerr.IsConfig(err))

	_, err = Integrate(q, q, 0, CutPoints{Shallow: 1, Mid: 2, Bottom: 7}, 1)
	assert.True(t, diagerr.IsData(err))
}

func TestVolumeWeights(t *testing.T) {
	mask := ramp(1, 1, 3, func(_, _, k int) float64 { return []float64{1, 0.5, 0}[k] })
	area := ramp(1, 1, 3, func(_, _, k int) float64 { return 10 })
	thick := ramp(1, 1, 3, func(_, _, k int) float64 { return float64(k + 1) })

	w, err := VolumeWeights(mask, area, thick)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 0}, w.Data)

	_, err = VolumeWeights(mask, area, ramp(2, 1, 3, func(int, int, int) float64 { return 1 }))
	require.Error(t, err)
	assert.True(t, diagerr.IsData(err))
}

func TestNewCube_ShapeMismatch(t *testing.T) {
	_, err := NewCube(2, 2, 2, make([]float64, 7))
	assert.True(t, diagerr.IsData(err))

	_, err = CubeFromField(&dataset.Field{Name: "x", Shape: []int{4}, Data: make([]float64, 4)})
	assert.True(t, diagerr.IsData(err))
}

// ones builds a chunk holding monthly records of a constant 1.0 field.
func ones(source string, nLayers int, months ...int) *dataset.Chunk {
	times := make([]time.Time, len(months))
	data := make([]float64, len(months)*nLayers)
	for i, m := range months {
		times[i] = time.Date(2000, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	}
	for i := range data {
		data[i] = 1
	}
	return &dataset.Chunk{
		Source: source,
		Times:  times,
		Fields: map[string]*dataset.Field{
			"q": {Name: "q", Shape: []int{len(months), 1, nLayers}, Data: data},
		},
	}
}

func TestThreeFileCatalog_TotalBand(t *testing.T) {
	const nLayers = 6
	depths := []float64{100, 400, 800, 1200, 2500, 5000}

	ds, err := dataset.Merge(context.Background(), dataset.Chunks(
		ones("jan-mar.nc", nLayers, 1, 2, 3),
		ones("mar-jun.nc", nLayers, 3, 4, 5, 6),
		ones("jun-dec.nc", nLayers, 6, 7, 8, 9, 10, 11, 12),
	))
	require.NoError(t, err)
	require.Equal(t, 12, ds.Len())

	f, err := ds.Var("q")
	require.NoError(t, err)
	q, err := CubeFromField(f)
	require.NoError(t, err)
	assert.Len(t, q.Data, nLayers*12)

	cuts, err := NewCutPoints(depths, 700, 2000)
	require.NoError(t, err)

	res, err := Integrate(q, q, 0, cuts, 1)
	require.NoError(t, err)
	require.Len(t, res.Total, 12)
	for _, v := range res.Total {
		assert.Equal(t, float64(nLayers), v)
	}
}
