package balance

// torqueTilt implements Adaptive Torque Response: it compares the motor
// current actually being drawn against the acceleration that current should
// produce on flat ground, and leans the setpoint into the gap so the rider
// feels a hill before the wheel visibly bogs down or surges.
//
// sssCode mirrors the firmware's internal debug codes for which branch of
// the step-size table fired on a given tick; kept only so test fixtures can
// assert against the same vocabulary the firmware's logs use.
type sssCode int

const (
	sssNone sssCode = 0
	sss1            = 1
	sss2            = 2
	sss4            = 4
	sss5            = 5
	sss6            = 6
	sss8            = 8
	sss9            = 9
	sss10           = 10
	sss11           = 11
	sss12           = 12
	sss13           = 13
	sss14           = 14
	sss17           = 17
	sss18           = 18
	sss19           = 19
	sss21           = 21
	sss22           = 22
	sss23           = 23
	sss24           = 24
	sss25           = 25
	sss26           = 26
	sss27           = 27
	sss28           = 28
	sss29           = 29
	sss31           = 31
	sss32           = 32
)

type torqueTilt struct {
	currentFilter biquad
	interpolated  float64
	target        float64
	accelGap      float64
	aggregate     float64
	staticClimb   bool
	sss           sssCode
}

func (t *torqueTilt) configure(d Derived, loopHz float64) {
	t.currentFilter.configure(biquadLowpass, d.TorquetiltFilterHz/loopHz)
}

func (t *torqueTilt) reset() {
	t.currentFilter.reset()
	t.interpolated = 0
	t.target = 0
	t.accelGap = 0
	t.aggregate = 0
	t.staticClimb = false
	t.sss = sssNone
}

// apply runs one tick of the ATR algorithm and returns the new setpoint
// contribution. setpoint, pidValue and proportional carry the shaped
// setpoint (with nose-angling already folded in) and the PID's own state as
// of the end of the PREVIOUS tick: torque-tilt runs before the PID
// recomputes either for this tick.
func (t *torqueTilt) apply(cfg Config, d Derived, f frame, cutback bool, setpoint, pidValue, proportional float64) float64 {
	filteredCurrent := t.currentFilter.process(f.motorCurrent)
	torqueSign := sign(filteredCurrent)
	absTorque := absf(filteredCurrent)
	torqueOffset := cfg.TorquetiltStartCurrent

	strength := d.TTStrengthUphill
	braking := false
	if f.absERPM > 250 && torqueSign != sign(f.erpm) {
		// current is negative, so we are braking or going downhill; high
		// currents downhill are less likely.
		braking = true
	}

	accelFactor := d.AccelFactor
	accelFactor2 := d.AccelFactor * 1.3

	// Open Question (b): the firmware computes fmaxf(acceleration, -5) and
	// discards the result, so measured_acc is really just fminf(acc, 5) with
	// no lower clamp. Reproduced literally.
	measuredAcc := f.acceleration
	if measuredAcc > 5 {
		measuredAcc = 5
	}

	// Expected acceleration is proportional to current, minus an offset
	// required to balance/maintain speed. Above a 25A breakpoint the
	// torque-to-acceleration curve is no longer linear, so the firmware
	// switches to a piecewise approximation with a second, steeper slope.
	var expectedAcc float64
	if absTorque < 25 {
		expectedAcc = (filteredCurrent - sign(f.erpm)*torqueOffset) / accelFactor
	} else {
		expectedAcc = (torqueSign*25 - sign(f.erpm)*torqueOffset) / accelFactor
		expectedAcc += torqueSign * (absTorque - 25) / accelFactor2
	}

	gap := expectedAcc - measuredAcc

	t.staticClimb = false
	switch {
	case f.absERPM > 2000:
		t.accelGap = 0.9*t.accelGap + 0.1*gap
	case f.absERPM > 1000:
		t.accelGap = 0.95*t.accelGap + 0.05*gap
	case f.absERPM > 250:
		t.accelGap = 0.98*t.accelGap + 0.02*gap
	default:
		// Low-speed erpms are very choppy/noisy: ignore them unless we're
		// actually trying to accelerate.
		switch {
		case absf(expectedAcc) < 1:
			t.accelGap = 0
		case absf(expectedAcc) < 1.5:
			if boolToFloat(t.accelGap > 1) != 0 {
				// Once the gap is above 1 we get more aggressive.
				t.accelGap = 0.9*t.accelGap + 0.1*gap
				t.staticClimb = true
			} else {
				// Until the gap is below 1 we use a strong filter because
				// of noise.
				t.accelGap = 0.99*t.accelGap + 0.01*gap
			}
		default:
			if boolToFloat(t.accelGap > 1) != 0 {
				t.accelGap = 0.9*t.accelGap + 0.1*gap
				t.staticClimb = true
			} else {
				t.accelGap = 0.95*t.accelGap + 0.05*gap
			}
		}
	}

	if sign(t.aggregate) == sign(t.accelGap) {
		t.aggregate += t.accelGap
	} else {
		t.aggregate = 0
	}

	// Torquetilt target is purely based on the gap between expected and
	// actual acceleration.
	newTTT := strength * t.accelGap
	cutbackResponse := false

	if cutback && f.absERPM > d.CutbackMinspeed {
		// Cutbacks trump any other action.
		if sign(newTTT) == sign(f.erpm) {
			newTTT /= 4
		} else {
			newTTT *= 1.5
		}
		cutbackResponse = true
	} else if braking && f.absERPM > 1000 {
		// Braking also should cause setpoint change lift, causing a delayed
		// lingering nose lift. Negative currents alone don't necessarily
		// constitute active braking, look at proportional.
		if sign(proportional) != sign(f.erpm) {
			downhillDamper := 1.0
			// If we're braking on a downhill we don't want braking to lift
			// the setpoint quite as much.
			if (f.erpm > 1000 && t.accelGap < -1) || (f.erpm < -1000 && t.accelGap > 1) {
				downhillDamper += absf(t.accelGap) / 2
			}
			newTTT += (f.pitch - setpoint) / d.TTTBrakeRatio / downhillDamper
		}
	}

	t.target = 0.95*t.target + 0.05*newTTT
	t.target = clamp(t.target, -cfg.TorquetiltAngleLimit, cfg.TorquetiltAngleLimit)

	step := t.stepSize(d, f, braking, cutbackResponse, setpoint, pidValue)
	switch {
	case t.interpolated < t.target:
		t.interpolated += step
		if t.interpolated > t.target {
			t.interpolated = t.target
		}
	case t.interpolated > t.target:
		t.interpolated -= step
		if t.interpolated < t.target {
			t.interpolated = t.target
		}
	}
	return t.interpolated
}

// stepSize reproduces the firmware's step-size decision table: which branch
// fires depends on erpm direction, whether torquetilt_interpolated is
// climbing or descending relative to its target, and the sign/magnitude of
// the acceleration gap. Each branch stamps t.sss with the matching firmware
// debug code for traceability against its logs.
func (t *torqueTilt) stepSize(d Derived, f frame, braking, cutbackResponse bool, setpoint, pidValue float64) float64 {
	onStep := d.TorquetiltOnStepSize
	offStep := d.TorquetiltOffStepSize

	switch {
	case f.absERPM < 500 && absf(t.accelGap) < 2:
		// At low speed we can't trust the acceleration data too much, so go
		// easy.
		t.sss = sssNone
		return offStep
	case cutbackResponse:
		// For now cutbacks trump all other situations: always react
		// quickly.
		if !braking {
			t.sss = sss28
			return onStep / 2
		}
		t.sss = sss18
		return onStep
	case f.erpm > 0:
		return t.stepSizeForward(d, f, braking, setpoint, pidValue, onStep, offStep)
	default:
		return t.stepSizeReverse(d, f, braking, setpoint, pidValue, onStep, offStep)
	}
}

func (t *torqueTilt) stepSizeForward(d Derived, f frame, braking bool, setpoint, pidValue, onStep, offStep float64) float64 {
	if t.interpolated < 0 {
		// Downhill.
		if t.interpolated < t.target {
			switch {
			case t.accelGap > 1 && t.aggregate > 20:
				// Looks like torquetilt is reversing course.
				t.sss = sss17
				return onStep
			case f.pitch < setpoint && pidValue > 0 && t.accelGap > 0.5:
				// Looks like torquetilt is reversing course.
				t.sss = sss11
				return onStep
			default:
				// To avoid oscillations we go down slower than we go up.
				t.sss = sss21
				return offStep
			}
		}
		switch {
		case absf(t.accelGap) < 0.5:
			t.sss = sss23
			return offStep
		case braking:
			t.sss = sss1
			return onStep / 2
		default:
			t.sss = sss2
			return onStep
		}
	}

	// Uphill or other heavy resistance (grass, mud, etc).
	if t.target > -3 && t.interpolated > t.target {
		switch {
		case f.absERPM < 1000 && f.pitch < 0.5:
			// The rider is already pushing in the other direction, obstacle
			// cleared?
			t.sss = sss29
			return offStep
		case f.absERPM < 2000 && (t.interpolated-t.target) > 2:
			// We're pretty slow after braking with lots of remaining TT.
			t.sss = sss4
			return onStep / 3
		case f.absERPM > 2000 && t.target < 0:
			t.sss = sss19
			return onStep / 2
		default:
			// To avoid oscillations we go down slower than we go up.
			t.sss = sss22
			return offStep
		}
	}

	var step float64
	var code sssCode
	switch {
	case absf(t.accelGap) < 0.5:
		step, code = offStep, sss27
	case f.absERPM < 1000:
		step, code = onStep/2, sss5
	default:
		step, code = onStep, sss6
	}
	if t.staticClimb {
		step *= 1.5
		code = sss31
	}
	t.sss = code
	return step
}

func (t *torqueTilt) stepSizeReverse(d Derived, f frame, braking bool, setpoint, pidValue, onStep, offStep float64) float64 {
	if t.interpolated > 0 {
		// Downhill.
		if t.interpolated > t.target && t.target > -3 {
			switch {
			case f.pitch > setpoint && pidValue < 0 && t.accelGap < 0:
				// Looks like torquetilt is reversing course.
				t.sss = sss12
				return onStep
			default:
				// To avoid oscillations we go down slower than we go up.
				t.sss = sss24
				return offStep
			}
		}
		switch {
		case braking:
			t.sss = sss13
			return onStep / 2
		default:
			t.sss = sss14
			return onStep
		}
	}

	// Uphill or other heavy resistance (grass, mud, etc).
	if t.target < 3 && t.interpolated < t.target {
		switch {
		case f.absERPM < 1000 && f.pitch > -0.5:
			t.sss = sss8
			return offStep
		default:
			t.sss = sss25
			return offStep
		}
	}

	var step float64
	var code sssCode
	switch {
	case t.accelGap == 0:
		step, code = offStep, sss26
	case f.absERPM < 1000:
		step, code = onStep/2, sss9
	default:
		step, code = onStep, sss10
	}
	if t.staticClimb {
		step *= 1.5
		code = sss32
	}
	t.sss = code
	return step
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
