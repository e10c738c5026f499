package streams

// NameMap maps a canonical analysis name to the names it may carry in
// model output, most preferred first.
type NameMap map[string][]string

// Candidates returns the names to look for when resolving canonical: the
// mapped candidates followed by the canonical name itself.
func (m NameMap) Candidates(canonical string) []string {
	out := append([]string(nil), m[canonical]...)
	for _, c := range out {
		if c == canonical {
			return out
		}
	}
	return append(out, canonical)
}

// Resolve returns the first candidate for canonical present in available,
// or "" when none is.
func (m NameMap) Resolve(canonical string, available map[string]bool) string {
	for _, c := range m.Candidates(canonical) {
		if available[c] {
			return c
		}
	}
	return ""
}

// TimeSeriesStats is the canonical name of the monthly statistics stream.
const TimeSeriesStats = "timeSeriesStats"

// TimeVariable is the canonical name of the time coordinate.
const TimeVariable = "Time"

// OceanStreamMap maps canonical ocean stream names to MPAS-O stream names.
var OceanStreamMap = NameMap{
	TimeSeriesStats: {"timeSeriesStatsMonthly", "timeSeriesStatsMonthlyOutput"},
}

// OceanVariableMap maps canonical ocean variable names to MPAS-O names.
var OceanVariableMap = NameMap{
	TimeVariable: {"xtime_startMonthly", "xtime_start", "xtime", "daysSinceStartOfSim"},
	"avgLayerTemperature": {
		"timeMonthly_avg_avgValueWithinOceanLayerRegion_avgLayerTemperature",
		"time_avg_avgValueWithinOceanLayerRegion_avgLayerTemperature",
	},
	"sumLayerMaskValue": {
		"timeMonthly_avg_avgValueWithinOceanLayerRegion_sumLayerMaskValue",
		"time_avg_avgValueWithinOceanLayerRegion_sumLayerMaskValue",
	},
	"avgLayerArea": {
		"timeMonthly_avg_avgValueWithinOceanLayerRegion_avgLayerArea",
		"time_avg_avgValueWithinOceanLayerRegion_avgLayerArea",
	},
	"avgLayerThickness": {
		"timeMonthly_avg_avgValueWithinOceanLayerRegion_avgLayerThickness",
		"time_avg_avgValueWithinOceanLayerRegion_avgLayerThickness",
	},
	"avgSurfaceTemperature": {
		"timeMonthly_avg_avgValueWithinOceanRegion_avgSurfaceTemperature",
		"time_avg_avgValueWithinOceanRegion_avgSurfaceTemperature",
	},
}

// SeaIceStreamMap maps canonical sea-ice stream names to MPAS-SeaIce names.
var SeaIceStreamMap = NameMap{
	TimeSeriesStats: {"timeSeriesStatsMonthlyOutput", "timeSeriesStatsMonthly"},
}

// SeaIceVariableMap maps canonical sea-ice variable names to MPAS-SeaIce names.
var SeaIceVariableMap = NameMap{
	TimeVariable:    {"xtime_startMonthly", "xtime_start", "xtime", "daysSinceStartOfSim"},
	"iceAreaCell":   {"timeMonthly_avg_iceAreaCell", "time_avg_iceAreaCell"},
	"iceVolumeCell": {"timeMonthly_avg_iceVolumeCell", "time_avg_iceVolumeCell"},
}

// DerivedVariableMap finds the time axis of post-processed files such as
// reference-run series and observations, which carry xtime or a CF time
// coordinate rather than the stream's monthly timestamps.
var DerivedVariableMap = NameMap{
	TimeVariable: {"xtime", "Time", "time"},
}
