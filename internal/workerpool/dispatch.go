package workerpool

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"nrgchamp/equipment-control/internal/algorithms"
	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/schedule"
)

// decode fills dst from merged settings, matching field names
// case-insensitively so equipment controls authored with any
// reasonable casing decode without per-algorithm struct tags.
func decode(merged model.Settings, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("workerpool: build decoder: %w", err)
	}
	return dec.Decode(map[string]any(merged))
}

func controlTempFor(kind model.EquipmentKind, snapshot model.MetricsSnapshot, temperatureSource string) float64 {
	switch kind {
	case model.KindBoilerComfort, model.KindBoilerDomestic:
		v, _ := snapshot.Float(model.FieldWaterSupplyTemperature)
		return v
	case model.KindPumpHW, model.KindPumpCW, model.KindChiller:
		v, _ := snapshot.Float(model.FieldOutdoorTemperature)
		return v
	case model.KindFanCoil:
		if temperatureSource == "room" {
			v, _ := snapshot.Float(model.FieldRoomTemperature)
			return v
		}
		v, _ := snapshot.Float(model.FieldSupplyTemperature)
		return v
	default:
		return 0
	}
}

// invoke decodes eq's merged settings into the algorithm's typed
// Settings struct, assembles carry-over state, and runs the algorithm
// registered for eq.Kind against the command allow-list for that
// kind.
func (p *Pool) invoke(eq model.Equipment, snapshot model.MetricsSnapshot, merged model.Settings, lead model.LeadLagResolution, now time.Time, dt float64) (any, error) {
	switch eq.Kind {
	case model.KindFanCoil:
		var settings algorithms.FanCoilSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		if settings.Occupancy.Location == nil {
			settings.Occupancy = schedule.DefaultWeekly(nil)
		}
		state := algorithms.FanCoilState{
			Heating: *p.state.PIDState(eq.LocationID, eq.ID, "heating"),
			Cooling: *p.state.PIDState(eq.LocationID, eq.ID, "cooling"),
		}
		controlTemp := controlTempFor(eq.Kind, snapshot, settings.TemperatureSource)
		result := algorithms.RunFanCoil(snapshot, settings, controlTemp, &state, now, dt)
		*p.state.PIDState(eq.LocationID, eq.ID, "heating") = state.Heating
		*p.state.PIDState(eq.LocationID, eq.ID, "cooling") = state.Cooling
		return result, nil

	case model.KindBoilerComfort:
		var settings algorithms.ComfortBoilerSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		settings.LeadLagIsLead = lead.IsLead
		settings.IsLead = lead.IsLead
		outdoor, _ := snapshot.Float(model.FieldOutdoorTemperature)
		supply, _ := snapshot.Float(model.FieldWaterSupplyTemperature)
		st := p.state.HysteresisState(eq.LocationID, eq.ID)
		return algorithms.RunBoilerComfort(outdoor, supply, settings, st), nil

	case model.KindBoilerDomestic:
		var settings algorithms.DomesticBoilerSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		applyDomesticBoilerDefaults(&settings)
		settings.IsLead = lead.IsLead
		supply, _ := snapshot.Float(model.FieldWaterSupplyTemperature)
		st := p.state.HysteresisState(eq.LocationID, eq.ID)
		return algorithms.RunBoilerDomestic(supply, settings, st), nil

	case model.KindPumpHW, model.KindPumpCW:
		var settings algorithms.PumpSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		if eq.Kind == model.KindPumpHW {
			settings.Kind = algorithms.PumpHW
		} else {
			settings.Kind = algorithms.PumpCW
		}
		settings.IsLead = lead.IsLead
		controlTemp := controlTempFor(eq.Kind, snapshot, "")
		st := p.state.HysteresisState(eq.LocationID, eq.ID)
		return algorithms.RunPump(controlTemp, settings, st), nil

	case model.KindChiller:
		var settings algorithms.ChillerSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		settings.IsLead = lead.IsLead
		outdoor := controlTempFor(eq.Kind, snapshot, "")
		return algorithms.RunChiller(outdoor, settings), nil

	case model.KindAirHandler:
		var settings algorithms.AirHandlerSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		outdoor, _ := snapshot.Float(model.FieldOutdoorTemperature)
		ret, _ := snapshot.Float(model.FieldReturnTemperature)
		mixed, _ := snapshot.Float(model.FieldMixedAirTemperature)
		supply, _ := snapshot.Float(model.FieldSupplyTemperature)
		state := algorithms.AirHandlerState{
			Heating: *p.state.PIDState(eq.LocationID, eq.ID, "heating"),
			Cooling: *p.state.PIDState(eq.LocationID, eq.ID, "cooling"),
			Damper:  *p.state.PIDState(eq.LocationID, eq.ID, "damper"),
		}
		result := algorithms.RunAirHandler(outdoor, ret, mixed, supply, settings, &state, dt)
		*p.state.PIDState(eq.LocationID, eq.ID, "heating") = state.Heating
		*p.state.PIDState(eq.LocationID, eq.ID, "cooling") = state.Cooling
		*p.state.PIDState(eq.LocationID, eq.ID, "damper") = state.Damper
		return result, nil

	case model.KindSteamBundle:
		var settings algorithms.SteamBundleSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		outdoor, _ := snapshot.Float(model.FieldOutdoorTemperature)
		supply, _ := snapshot.Float(model.FieldSupplyTemperature)
		st := p.state.PIDState(eq.LocationID, eq.ID, "steam")
		return algorithms.RunSteamBundle(outdoor, supply, settings, st, dt), nil

	case model.KindGeothermal:
		var settings algorithms.GeothermalSettings
		if err := decode(merged, &settings); err != nil {
			return nil, err
		}
		loopTemp, _ := snapshot.Float("loopTemp")
		st := p.state.GeothermalState(eq.LocationID, eq.ID)
		return algorithms.RunGeothermal(loopTemp, settings, st, now), nil

	default:
		return nil, model.NewControlError(model.KindUnknownEquipment, model.ErrUnknownEquipmentKind)
	}
}

// applyDomesticBoilerDefaults fills the defaults DomesticBoilerSettings
// documents as caller-supplied (135/5/170 degF) when the decoded
// settings map left them at the zero value.
func applyDomesticBoilerDefaults(s *algorithms.DomesticBoilerSettings) {
	if s.Setpoint == 0 {
		s.Setpoint = 135
	}
	if s.Deadband == 0 {
		s.Deadband = 5
	}
	if s.HighLimit == 0 {
		s.HighLimit = 170
	}
}
