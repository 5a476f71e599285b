// Package normalize maps heterogeneous sensor field names onto the
// canonical schema (model.MetricsSnapshot) Field
// name aliasing is data, not control flow, so the alias table below is
// the thing to extend when a new sensor vendor shows up.
package normalize

import (
	"strconv"
	"strings"

	"nrgchamp/equipment-control/internal/model"
)

// aliases lists, per canonical field, the raw field names accepted in
// order of preference — earlier entries win when more than one alias
// is present in the same raw reading.
var aliases = map[string][]string{
	model.FieldRoomTemperature:        {"roomTemperature", "RoomTemp", "SpaceTemp", "RAT", "Room"},
	model.FieldSupplyTemperature:      {"supplyTemperature", "Supply", "SAT", "SupplyAirTemp", "DischargeTemp"},
	model.FieldReturnTemperature:      {"returnTemperature", "Return", "RAT2", "ReturnAirTemp"},
	model.FieldMixedAirTemperature:    {"mixedAirTemperature", "MAT", "MixedAir"},
	model.FieldOutdoorTemperature:     {"outdoorTemperature", "OAT", "OutdoorAir", "Outdoor"},
	model.FieldWaterSupplyTemperature: {"waterSupplyTemperature", "H2OSupply", "WaterSupply", "HWS"},
	model.FieldWaterReturnTemperature: {"waterReturnTemperature", "H2OReturn", "WaterReturn", "HWR"},
	model.FieldSetpoint:               {"setpoint", "Setpoint", "SP"},
}

// standardFieldNamesLower is the set of every alias (lowercased) across
// all canonical fields, used to decide whether an unrecognized
// "<area>Temp(erature)" field is actually a restated standard field
// under a naming collision rather than a genuine zone sensor.
var standardFieldNamesLower = buildStandardSet()

func buildStandardSet() map[string]struct{} {
	out := map[string]struct{}{}
	for canon, names := range aliases {
		out[strings.ToLower(canon)] = struct{}{}
		for _, n := range names {
			out[strings.ToLower(n)] = struct{}{}
		}
	}
	return out
}

// Normalize builds a model.MetricsSnapshot from a raw field map. It
// coerces numeric strings to float64 and "true"/"false" strings to
// bool, resolves aliases to canonical fields, and runs the secondary
// zone-sensor pass over whatever is left. Leftover fields that are not
// zone sensors are kept in Values under their raw names.
func Normalize(raw map[string]any) model.MetricsSnapshot {
	out := model.NewMetricsSnapshot()
	coerced := make(map[string]any, len(raw))
	for k, v := range raw {
		coerced[k] = coerce(v)
	}

	consumed := map[string]struct{}{}
	for canon, candidates := range aliases {
		for _, alias := range candidates {
			if v, ok := coerced[alias]; ok {
				out.Values[canon] = v
				consumed[alias] = struct{}{}
				break
			}
		}
	}

	for k, v := range coerced {
		if _, used := consumed[k]; used {
			continue
		}
		if zone, ok := zoneSensorName(k); ok {
			if f, ok := toFloat(v); ok {
				out.ZoneTemperatures[zone] = f
			}
			continue
		}
		out.Values[k] = v
	}
	return out
}

// zoneSensorName reports whether raw field name k looks like a zone
// temperature sensor — it ends in "Temp" or "Temperature" and its
// prefix is not itself a standard field name — and returns the area
// prefix to use as the zone key.
func zoneSensorName(k string) (string, bool) {
	lower := strings.ToLower(k)
	var prefix string
	switch {
	case strings.HasSuffix(lower, "temperature"):
		prefix = k[:len(k)-len("temperature")]
	case strings.HasSuffix(lower, "temp"):
		prefix = k[:len(k)-len("temp")]
	default:
		return "", false
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", false
	}
	if _, isStandard := standardFieldNamesLower[lower]; isStandard {
		return "", false
	}
	return prefix, true
}

func coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}
