// Package pid implements the numerical PID controller shared by every
// equipment algorithm that modulates a valve, damper, or fan position,
// grounded on the adaptive_pid controller shape (kp/ki/kd, windup
// clamp) while keeping the control math a pure function over explicit
// state
package pid

// Params tunes one PID loop.
type Params struct {
	Kp, Ki, Kd     float64
	OutputMin      float64
	OutputMax      float64
	ReverseActing  bool
	MaxIntegral    float64
	Enabled        bool
}

// State is the carry-over between ticks for one loop. Integral is
// clamped to [-MaxIntegral, +MaxIntegral] on every update.
type State struct {
	Integral      float64
	PreviousError float64
	LastOutput    float64
}

// Output is the per-term breakdown of one PID evaluation, useful for
// diagnostics and for the steam-bundle's two-stage valve split.
type Output struct {
	Output float64
	P, I, D float64
}

// Run evaluates the PID loop for one tick. If params.Enabled is false,
// it returns a zero Output and leaves state untouched.
func Run(input, setpoint float64, params Params, dt float64, state *State) Output {
	if !params.Enabled {
		return Output{}
	}
	if dt <= 0 {
		dt = 1
	}

	err := setpoint - input
	if params.ReverseActing {
		err = -err
	}

	integral := state.Integral + err*dt
	maxI := params.MaxIntegral
	if maxI > 0 {
		if integral > maxI {
			integral = maxI
		} else if integral < -maxI {
			integral = -maxI
		}
	}

	derivative := (err - state.PreviousError) / dt

	p := params.Kp * err
	i := params.Ki * integral
	d := params.Kd * derivative

	out := p + i + d
	if out > params.OutputMax {
		out = params.OutputMax
	} else if out < params.OutputMin {
		out = params.OutputMin
	}

	state.Integral = integral
	state.PreviousError = err
	state.LastOutput = out

	return Output{Output: out, P: p, I: i, D: d}
}
