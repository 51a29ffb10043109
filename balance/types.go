package balance

import "fmt"

// SwitchState is the debounced classification of the rider's foot pads.
type SwitchState int

const (
	SwitchOff SwitchState = iota
	SwitchHalf
	SwitchOn
)

func (s SwitchState) String() string {
	switch s {
	case SwitchOff:
		return "off"
	case SwitchHalf:
		return "half"
	case SwitchOn:
		return "on"
	default:
		return fmt.Sprintf("switch(%d)", int(s))
	}
}

// BalanceState is the top-level ride/fault state machine.
type BalanceState int

const (
	StateStartup BalanceState = iota
	StateRunning
	StateRunningTiltbackDuty
	StateRunningTiltbackHV
	StateRunningTiltbackLV
	StateFaultAnglePitch
	StateFaultAngleRoll
	StateFaultSwitchHalf
	StateFaultSwitchFull
	StateFaultDuty
	StateFaultStartup
	StateFaultReverse
)

func (s BalanceState) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateRunning:
		return "running"
	case StateRunningTiltbackDuty:
		return "running_tiltback_duty"
	case StateRunningTiltbackHV:
		return "running_tiltback_hv"
	case StateRunningTiltbackLV:
		return "running_tiltback_lv"
	case StateFaultAnglePitch:
		return "fault_angle_pitch"
	case StateFaultAngleRoll:
		return "fault_angle_roll"
	case StateFaultSwitchHalf:
		return "fault_switch_half"
	case StateFaultSwitchFull:
		return "fault_switch_full"
	case StateFaultDuty:
		return "fault_duty"
	case StateFaultStartup:
		return "fault_startup"
	case StateFaultReverse:
		return "fault_reverse"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// isRunning reports whether the state is one of the four running variants.
func (s BalanceState) isRunning() bool {
	return s >= StateRunning && s <= StateRunningTiltbackLV
}

// isFault reports whether the state is one of the fault variants.
func (s BalanceState) isFault() bool {
	return s >= StateFaultAnglePitch
}

// SetpointAdjustmentType is the setpoint-shaper mode, the second of the two
// loosely coupled state machines driving a tick.
type SetpointAdjustmentType int

const (
	Centering SetpointAdjustmentType = iota
	ReverseStop
	TiltbackNone
	TiltbackDuty
	TiltbackHV
	TiltbackLV
)

func (m SetpointAdjustmentType) String() string {
	switch m {
	case Centering:
		return "centering"
	case ReverseStop:
		return "reverse_stop"
	case TiltbackNone:
		return "tiltback_none"
	case TiltbackDuty:
		return "tiltback_duty"
	case TiltbackHV:
		return "tiltback_hv"
	case TiltbackLV:
		return "tiltback_lv"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// RideState drives the (out of scope) LED/light driver: this enum exists so
// a light driver has something deterministic to subscribe to, matching the
// GLOSSARY's "RideState (LED only)" tagged variant.
type RideState int

const (
	RideOff RideState = iota
	RideIdle
	RideForward
	RideReverse
	RideBrakeForward
	RideBrakeReverse
)

func (r RideState) String() string {
	switch r {
	case RideOff:
		return "off"
	case RideIdle:
		return "idle"
	case RideForward:
		return "forward"
	case RideReverse:
		return "reverse"
	case RideBrakeForward:
		return "brake_forward"
	case RideBrakeReverse:
		return "brake_reverse"
	default:
		return fmt.Sprintf("ride(%d)", int(r))
	}
}

// FaultKind enumerates the distinct precondition families the fault detector
// evaluates each tick. Only one can win per tick.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultSwitchFull
	FaultSwitchHalfKind
	FaultAnglePitchKind
	FaultAngleRollKind
	FaultDutyKind
	FaultReverseKind
	FaultStartupKind
)

// sign returns -1 or 1 matching the C SIGN() macro used throughout the
// original controller (SIGN(0) is treated as positive, matching `x > 0 ? 1 : -1`
// semantics used by the source, i.e. SIGN(x) = (x<0) ? -1 : 1).
func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
