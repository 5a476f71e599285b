package pid

import "testing"

func TestRunDirectActingClampsOutput(t *testing.T) {
	p := Params{Kp: 10, Ki: 0, Kd: 0, OutputMin: 0, OutputMax: 100, MaxIntegral: 50, Enabled: true}
	st := &State{}
	out := Run(50, 80, p, 1, st) // error = 80-50=30, *10 = 300, clamp to 100
	if out.Output != 100 {
		t.Fatalf("expected clamp to 100, got %.2f", out.Output)
	}
}

func TestRunReverseActingNegatesError(t *testing.T) {
	p := Params{Kp: 1, Ki: 0, Kd: 0, OutputMin: -100, OutputMax: 100, MaxIntegral: 50, Enabled: true}
	st := &State{}
	out := Run(80, 50, p, 1, st) // direct error = 50-80=-30; reverse negates to +30
	if out.Output != -30 {
		t.Fatalf("direct-acting: expected -30 got %.2f", out.Output)
	}

	st2 := &State{}
	pr := p
	pr.ReverseActing = true
	out2 := Run(80, 50, pr, 1, st2)
	if out2.Output != 30 {
		t.Fatalf("reverse-acting: expected 30 got %.2f", out2.Output)
	}
}

func TestRunIntegralClampedToMaxIntegral(t *testing.T) {
	p := Params{Kp: 0, Ki: 1, Kd: 0, OutputMin: -1000, OutputMax: 1000, MaxIntegral: 10, Enabled: true}
	st := &State{}
	for i := 0; i < 50; i++ {
		Run(0, 100, p, 1, st)
	}
	if st.Integral != 10 {
		t.Fatalf("expected integral clamped to 10, got %.2f", st.Integral)
	}
}

func TestRunDisabledDoesNotMutateState(t *testing.T) {
	p := Params{Kp: 1, Ki: 1, Kd: 1, OutputMax: 100, MaxIntegral: 10, Enabled: false}
	st := &State{Integral: 5, PreviousError: 2, LastOutput: 7}
	out := Run(10, 20, p, 1, st)
	if out.Output != 0 {
		t.Fatalf("expected zero output when disabled, got %.2f", out.Output)
	}
	if st.Integral != 5 || st.PreviousError != 2 || st.LastOutput != 7 {
		t.Fatalf("expected state untouched when disabled, got %+v", st)
	}
}

func TestRunDerivativeUsesPreviousError(t *testing.T) {
	p := Params{Kp: 0, Ki: 0, Kd: 1, OutputMin: -1000, OutputMax: 1000, MaxIntegral: 1000, Enabled: true}
	st := &State{PreviousError: 0}
	out := Run(90, 100, p, 1, st) // error=10, derivative=(10-0)/1=10
	if out.D != 10 {
		t.Fatalf("expected derivative term 10, got %.2f", out.D)
	}
}
