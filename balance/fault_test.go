package balance

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func faultTestConfig() Config {
	c := validConfig()
	c.FaultPitch = 45
	c.FaultDelayPitch = 30
	c.FaultRoll = 45
	c.FaultDelayRoll = 30
	c.FaultDuty = 0.95
	c.FaultDelayDuty = 50
	c.FaultADC1 = 0.2
	c.FaultADC2 = 0.2
	c.FaultADCHalfERPM = 5000
	c.FaultDelaySwitchFull = 500
	c.FaultDelaySwitchHalf = 500
	return c
}

func TestCheckFaultsNoFaultWhenNominal(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 5, roll: 2, absDuty: 0.1}
	state, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)
	test.That(t, state, test.ShouldEqual, StateRunning)
}

func TestCheckFaultsPitchFiresAfterDelay(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 50, roll: 0, absDuty: 0.1}

	state, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)

	state, faulted = checkFaults(40*time.Millisecond, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, StateFaultAnglePitch)
}

func TestCheckFaultsIgnoreTimersFiresImmediately(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 50, roll: 0, absDuty: 0.1}

	_, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, true)
	test.That(t, faulted, test.ShouldBeTrue)
}

func TestCheckFaultsSwitchOffEventuallyFaults(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 0, roll: 0, absDuty: 0.1, absERPM: 0}

	_, faulted := checkFaults(0, &timers, cfg, f, SwitchOff, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)

	state, faulted := checkFaults(600*time.Millisecond, &timers, cfg, f, SwitchOff, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, StateFaultSwitchFull)
}

func TestCheckFaultsReverseStopModeFaultsOnDeepPitch(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{reverse: 0}
	f := frame{pitch: 16, roll: 0, absDuty: 0.1, absERPM: 100}

	state, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, ReverseStop, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, StateFaultReverse)
}

func TestCheckFaultsReverseStopFaultsOnExcessERPM(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 0, roll: 0, absDuty: 0.1, absERPM: 100}

	state, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, ReverseStop, 200000, 50000, true, false)
	test.That(t, faulted, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, StateFaultReverse)
}

func TestCheckFaultsDutyFiresAfterDelay(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	f := frame{pitch: 0, roll: 0, absDuty: 0.99}

	_, faulted := checkFaults(0, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)

	state, faulted := checkFaults(60*time.Millisecond, &timers, cfg, f, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, StateFaultDuty)
}

func TestCheckFaultsTimerResetsWhenPreconditionClears(t *testing.T) {
	cfg := faultTestConfig()
	timers := faultTimers{}
	bad := frame{pitch: 50, roll: 0, absDuty: 0.1}
	good := frame{pitch: 0, roll: 0, absDuty: 0.1}

	_, faulted := checkFaults(0, &timers, cfg, bad, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)

	_, faulted = checkFaults(20*time.Millisecond, &timers, cfg, good, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)

	// Timer was reset by the good frame, so the delay must restart from here.
	_, faulted = checkFaults(40*time.Millisecond, &timers, cfg, bad, SwitchOn, TiltbackNone, 0, 50000, true, false)
	test.That(t, faulted, test.ShouldBeFalse)
}
