package irrigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_Branches(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name string
		in   Inputs
		want Decision
	}{
		{
			name: "dry night empty reservoir raises alarm",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: false, Hour: 20},
			want: Decision{Branch: BranchRefill, PumpOn: false, Pattern: PatternAlarm},
		},
		{
			name: "dry night water dark waters",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: true, Hour: 20, LightAware: true, Dark: true},
			want: Decision{Branch: BranchWater, PumpOn: true, Pattern: PatternSolid},
		},
		{
			name: "dry night water without light sensor waters",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: true, Hour: 2},
			want: Decision{Branch: BranchWater, PumpOn: true, Pattern: PatternSolid},
		},
		{
			name: "dry night water but bright warns",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: true, Hour: 20, LightAware: true, Dark: false},
			want: Decision{Branch: BranchHold, PumpOn: false, Pattern: PatternWarning},
		},
		{
			name: "dry daytime warns",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: true, Hour: 14},
			want: Decision{Branch: BranchHold, PumpOn: false, Pattern: PatternWarning},
		},
		{
			name: "dry daytime empty reservoir warns rather than alarms",
			in:   Inputs{SoilMoisture: 1500, WaterPresent: false, Hour: 15},
			want: Decision{Branch: BranchHold, PumpOn: false, Pattern: PatternWarning},
		},
		{
			name: "threshold itself is not dry",
			in:   Inputs{SoilMoisture: 1200, WaterPresent: true, Hour: 20, LightAware: true, Dark: true},
			want: Decision{Branch: BranchIdle, PumpOn: false, Pattern: PatternOff},
		},
		{
			name: "moist soil idles",
			in:   Inputs{SoilMoisture: 800, WaterPresent: false, Hour: 20},
			want: Decision{Branch: BranchIdle, PumpOn: false, Pattern: PatternOff},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in, p))
		})
	}
}

// The window 18:00-11:59 is almost certainly wider than intended. These
// cases pin the literal comparison so any change to it is deliberate.
func TestIsNight_LiteralWindow(t *testing.T) {
	p := DefaultParams()
	night := map[int]bool{}
	for h := 0; h < 24; h++ {
		night[h] = p.IsNight(h)
	}
	for h := 0; h < 12; h++ {
		assert.True(t, night[h], "hour %d", h)
	}
	for h := 12; h < 18; h++ {
		assert.False(t, night[h], "hour %d", h)
	}
	for h := 18; h < 24; h++ {
		assert.True(t, night[h], "hour %d", h)
	}
	count := 0
	for _, v := range night {
		if v {
			count++
		}
	}
	assert.Equal(t, 18, count, "night window covers 18 of 24 hours")
}

func forAllInputs(fn func(in Inputs)) {
	for _, soil := range []int{0, 500, 1199, 1200, 1201, 1500, 4095} {
		for hour := 0; hour < 24; hour++ {
			for _, water := range []bool{false, true} {
				for _, aware := range []bool{false, true} {
					for _, dark := range []bool{false, true} {
						fn(Inputs{SoilMoisture: soil, WaterPresent: water, Hour: hour, LightAware: aware, Dark: dark})
					}
				}
			}
		}
	}
}

func TestDecide_Properties(t *testing.T) {
	p := DefaultParams()
	forAllInputs(func(in Inputs) {
		d := Decide(in, p)

		if in.SoilMoisture <= p.DryThreshold {
			assert.False(t, d.PumpOn, "%+v", in)
			assert.Equal(t, PatternOff, d.Pattern, "%+v", in)
		}
		if in.SoilMoisture > p.DryThreshold && p.IsNight(in.Hour) && !in.WaterPresent {
			assert.False(t, d.PumpOn, "%+v", in)
			assert.Equal(t, PatternAlarm, d.Pattern, "%+v", in)
		}
		if in.SoilMoisture > p.DryThreshold && p.IsNight(in.Hour) && in.WaterPresent && (!in.LightAware || in.Dark) {
			assert.True(t, d.PumpOn, "%+v", in)
		}
		// Only the water branch ever energizes the pump.
		assert.Equal(t, d.Branch == BranchWater, d.PumpOn, "%+v", in)
		// No hidden state: a second call agrees.
		assert.Equal(t, d, Decide(in, p), "%+v", in)
	})
}

func TestDecide_CustomParams(t *testing.T) {
	p := Params{DryThreshold: 2000, NightStart: 20, NightEnd: 6}
	assert.Equal(t, BranchIdle, Decide(Inputs{SoilMoisture: 1500, WaterPresent: true, Hour: 22}, p).Branch)
	assert.Equal(t, BranchWater, Decide(Inputs{SoilMoisture: 2500, WaterPresent: true, Hour: 22}, p).Branch)
	assert.Equal(t, BranchHold, Decide(Inputs{SoilMoisture: 2500, WaterPresent: true, Hour: 8}, p).Branch)
}
