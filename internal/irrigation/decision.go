// Package irrigation decides whether to water and drives the pump relay and
// indicator LED accordingly.
package irrigation

// Branch identifies which rule produced a decision.
type Branch string

const (
	// BranchRefill: dry soil at night but the reservoir is empty.
	BranchRefill Branch = "refill"
	// BranchWater: dry soil at night with water (and darkness, when light aware).
	BranchWater Branch = "water"
	// BranchHold: dry soil outside the watering conditions.
	BranchHold Branch = "hold"
	// BranchIdle: soil is not dry.
	BranchIdle Branch = "idle"
)

// Pattern is what the indicator LED shows for a decision.
type Pattern string

const (
	PatternAlarm   Pattern = "alarm"
	PatternSolid   Pattern = "solid"
	PatternWarning Pattern = "warning"
	PatternOff     Pattern = "off"
)

// Params are the fixed thresholds of the decision.
type Params struct {
	// DryThreshold in 12-bit counts; the probe reads higher when drier.
	DryThreshold int
	NightStart   int
	NightEnd     int
}

// DefaultParams returns the thresholds the node ships with.
func DefaultParams() Params {
	return Params{DryThreshold: 1200, NightStart: 18, NightEnd: 12}
}

// Inputs are the four values a decision depends on.
type Inputs struct {
	SoilMoisture int
	WaterPresent bool
	Hour         int
	// LightAware is false on nodes without a light sensor; Dark is then ignored.
	LightAware bool
	Dark       bool
}

type Decision struct {
	Branch  Branch
	PumpOn  bool
	Pattern Pattern
}

// IsDry reports whether the soil reading is above the dry threshold.
func (p Params) IsDry(soil int) bool {
	return soil > p.DryThreshold
}

// IsNight reports whether hour falls in the watering window
// hour >= NightStart || hour < NightEnd. With the shipped 18 and 12 this spans
// 18:00 to 11:59, eighteen hours a day. The comparison is kept literally;
// narrowing it changes when the pump may run and needs its own change.
func (p Params) IsNight(hour int) bool {
	return hour >= p.NightStart || hour < p.NightEnd
}

// Decide applies the rules in order; the first match wins. It is a pure
// function of in and p.
func Decide(in Inputs, p Params) Decision {
	if !p.IsDry(in.SoilMoisture) {
		return Decision{Branch: BranchIdle, PumpOn: false, Pattern: PatternOff}
	}
	night := p.IsNight(in.Hour)
	switch {
	case night && !in.WaterPresent:
		return Decision{Branch: BranchRefill, PumpOn: false, Pattern: PatternAlarm}
	case night && in.WaterPresent && (!in.LightAware || in.Dark):
		return Decision{Branch: BranchWater, PumpOn: true, Pattern: PatternSolid}
	default:
		return Decision{Branch: BranchHold, PumpOn: false, Pattern: PatternWarning}
	}
}
