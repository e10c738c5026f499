package dataset

import (
	"context"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/rotisserie/eris"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// StaticReader reads time-independent variables, such as the vertical grid
// and the simulation start time held in a restart file.
type StaticReader interface {
	ReadStatic(ctx context.Context, path string, names ...string) (map[string]*Field, error)
	ReadString(ctx context.Context, path, name string) (string, error)
}

// Reader is everything the diagnostics need from model output files.
type Reader interface {
	ChunkReader
	StaticReader
}

// NetCDFReader reads netCDF (CDF and HDF5 flavours) files.
type NetCDFReader struct{}

var _ Reader = NetCDFReader{}

func openGroup(path string) (api.Group, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "netcdf: open %s", path))
	}
	return g, nil
}

// ReadChunk reads path, renaming variables through opts.VariableMap,
// decoding the time axis with opts.YearOffset and keeping only
// opts.Variables.
func (NetCDFReader) ReadChunk(ctx context.Context, path string, opts Options) (*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := openGroup(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	available := make(map[string]bool)
	for _, name := range g.ListVariables() {
		available[name] = true
	}

	timeName := opts.VariableMap.Resolve(streams.TimeVariable, available)
	if timeName == "" {
		return nil, diagerr.Dataf("netcdf: %s has no time variable (looked for %v)",
			path, opts.VariableMap.Candidates(streams.TimeVariable))
	}
	tv, err := g.GetVariable(timeName)
	if err != nil {
		return nil, diagerr.Data(eris.Wrapf(err, "netcdf: read %s from %s", timeName, path))
	}
	times, err := DecodeTimes(tv.Values, opts.TimeReference, opts.YearOffset)
	if err != nil {
		return nil, diagerr.Data(eris.Wrapf(err, "netcdf: decode %s in %s", timeName, path))
	}

	wanted := opts.Variables
	if len(wanted) == 0 {
		wanted = timedVariables(g, timeName, tv.Dimensions)
	}

	chunk := &Chunk{Source: path, Times: times, Fields: make(map[string]*Field, len(wanted))}
	for _, canonical := range wanted {
		src := opts.VariableMap.Resolve(canonical, available)
		if src == "" {
			return nil, diagerr.Dataf("netcdf: variable %s not found in %s (looked for %v)",
				canonical, path, opts.VariableMap.Candidates(canonical))
		}
		v, err := g.GetVariable(src)
		if err != nil {
			return nil, diagerr.Data(eris.Wrapf(err, "netcdf: read %s from %s", src, path))
		}
		data, shape, err := Flatten(v.Values)
		if err != nil {
			return nil, diagerr.Data(eris.Wrapf(err, "netcdf: variable %s in %s", src, path))
		}
		if len(shape) == 0 || shape[0] != len(times) {
			return nil, diagerr.Dataf("netcdf: variable %s in %s has shape %v, want %d time records",
				src, path, shape, len(times))
		}
		chunk.Fields[canonical] = &Field{Name: canonical, Dims: dimsFor(v.Dimensions, shape), Shape: shape, Data: data}
	}
	return chunk, nil
}

// ReadStatic reads the named variables without a time axis.
func (NetCDFReader) ReadStatic(ctx context.Context, path string, names ...string) (map[string]*Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := openGroup(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	out := make(map[string]*Field, len(names))
	for _, name := range names {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, diagerr.Data(eris.Wrapf(err, "netcdf: read %s from %s", name, path))
		}
		data, shape, err := Flatten(v.Values)
		if err != nil {
			return nil, diagerr.Data(eris.Wrapf(err, "netcdf: variable %s in %s", name, path))
		}
		// Restart files carry a leading Time dimension of length one.
		if len(v.Dimensions) > 0 && v.Dimensions[0] == "Time" && len(shape) > 1 && shape[0] == 1 {
			shape = shape[1:]
			v.Dimensions = v.Dimensions[1:]
		}
		out[name] = &Field{Name: name, Dims: dimsFor(v.Dimensions, shape), Shape: shape, Data: data}
	}
	return out, nil
}

// ReadString reads a character variable such as simulationStartTime.
func (NetCDFReader) ReadString(ctx context.Context, path, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g, err := openGroup(path)
	if err != nil {
		return "", err
	}
	defer g.Close()

	v, err := g.GetVariable(name)
	if err != nil {
		return "", diagerr.Data(eris.Wrapf(err, "netcdf: read %s from %s", name, path))
	}
	switch s := v.Values.(type) {
	case string:
		return cleanString(s), nil
	case []string:
		if len(s) == 0 {
			return "", diagerr.Dataf("netcdf: %s in %s is empty", name, path)
		}
		return cleanString(s[0]), nil
	default:
		return "", diagerr.Dataf("netcdf: %s in %s is %T, not a string", name, path, v.Values)
	}
}

// DecodeTimes converts a time variable into absolute times. Character
// variables hold MPAS date strings; numeric variables count days since ref.
func DecodeTimes(values any, ref timekeeping.Date, yearOffset int) ([]time.Time, error) {
	switch v := values.(type) {
	case string:
		t, err := parseTime(v, yearOffset)
		if err != nil {
			return nil, err
		}
		return []time.Time{t}, nil
	case []string:
		out := make([]time.Time, len(v))
		for i, s := range v {
			t, err := parseTime(s, yearOffset)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}

	days, shape, err := Flatten(values)
	if err != nil {
		return nil, err
	}
	if len(shape) > 1 {
		return nil, eris.Errorf("numeric time variable has rank %d", len(shape))
	}
	base := ref.ToTime(yearOffset)
	out := make([]time.Time, len(days))
	for i, d := range days {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, eris.Errorf("numeric time value %v is not finite", d)
		}
		whole := math.Floor(d)
		out[i] = base.AddDate(0, 0, int(whole)).Add(time.Duration((d - whole) * float64(24*time.Hour)))
	}
	return out, nil
}

func parseTime(s string, yearOffset int) (time.Time, error) {
	d, err := timekeeping.ParseDate(cleanString(s))
	if err != nil {
		return time.Time{}, err
	}
	return d.ToTime(yearOffset), nil
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// Flatten converts a scalar or (nested) slice of numbers into row-major
// float64 data and its shape.
func Flatten(values any) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, eris.New("no values")
	}

	var shape []int
	for probe := rv; probe.Kind() == reflect.Slice; {
		shape = append(shape, probe.Len())
		if probe.Len() == 0 {
			break
		}
		probe = probe.Index(0)
	}

	data := make([]float64, 0, product(shape))
	if err := flattenInto(rv, shape, &data); err != nil {
		return nil, nil, err
	}
	return data, shape, nil
}

func flattenInto(rv reflect.Value, shape []int, out *[]float64) error {
	if rv.Kind() == reflect.Slice {
		if len(shape) == 0 || rv.Len() != shape[0] {
			return eris.New("ragged array")
		}
		for i := 0; i < rv.Len(); i++ {
			if err := flattenInto(rv.Index(i), shape[1:], out); err != nil {
				return err
			}
		}
		return nil
	}
	if len(shape) != 0 {
		return eris.New("ragged array")
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		*out = append(*out, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(rv.Uint()))
	default:
		return eris.Errorf("unsupported element type %s", rv.Type())
	}
	return nil
}

// timedVariables lists numeric variables whose first dimension is the time
// variable's first dimension.
func timedVariables(g api.Group, timeName string, timeDims []string) []string {
	if len(timeDims) == 0 {
		return nil
	}
	var out []string
	for _, name := range g.ListVariables() {
		if name == timeName {
			continue
		}
		v, err := g.GetVariable(name)
		if err != nil || len(v.Dimensions) == 0 || v.Dimensions[0] != timeDims[0] {
			continue
		}
		if _, _, err := Flatten(v.Values); err != nil {
			continue
		}
		out = append(out, name)
	}
	return out
}

func dimsFor(dims []string, shape []int) []string {
	if len(dims) != len(shape) {
		return nil
	}
	return dims
}
