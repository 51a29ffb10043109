package balance

import "context"

// classifySwitch maps the two foot-pad ADC voltages to {Off,Half,On} per
// the firmware's check_adcs.
func classifySwitch(adc1, adc2, faultADC1, faultADC2 float64) SwitchState {
	switch {
	case faultADC1 == 0 && faultADC2 == 0:
		// No switch present.
		return SwitchOn
	case faultADC2 == 0:
		if adc1 > faultADC1 {
			return SwitchOn
		}
		return SwitchOff
	case faultADC1 == 0:
		if adc2 > faultADC2 {
			return SwitchOn
		}
		return SwitchOff
	default:
		switch {
		case adc1 > faultADC1 && adc2 > faultADC2:
			return SwitchOn
		case adc1 > faultADC1 || adc2 > faultADC2:
			return SwitchHalf
		default:
			return SwitchOff
		}
	}
}

// updateSwitchBuzzer drives the forced-on/off buzzer side effect of the
// switch classifier: if the rider's foot is off the pad at riding speed, the
// buzzer is forced on to warn of an imminent fault.
func updateSwitchBuzzer(ctx context.Context, buzzer Buzzer, sw SwitchState, absERPM, faultADCHalfERPM float64, state BalanceState) error {
	if sw != SwitchOff {
		return buzzer.Off(ctx, false)
	}
	if absERPM > faultADCHalfERPM && state.isRunning() {
		return buzzer.On(ctx, true)
	}
	return buzzer.Off(ctx, false)
}
