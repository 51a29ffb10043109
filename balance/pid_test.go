package balance

import (
	"testing"

	"go.viam.com/test"
)

func pidTestDerived() (Config, Derived) {
	c := validConfig()
	c.KP = 1
	c.KI = 0.001
	c.KD = 0.05
	c.RollSteerKp = 20
	c.BrakeCurrent = 5.3
	d := Derive(c)
	return c, d
}

func TestPIDStepSaturatesToCurrentBounds(t *testing.T) {
	cfg, d := pidTestDerived()
	var p pidState
	p.reset(d, 0)

	f := frame{pitch: -60, erpm: 0, absERPM: 0}
	var current float64
	for i := 0; i < 500; i++ {
		current = p.step(cfg, d, f, 40, TiltbackNone, 0, cfg.Hertz)
	}
	test.That(t, current, test.ShouldBeLessThanOrEqualTo, d.MCCurrentMax-3)
	test.That(t, p.currentLimiting, test.ShouldBeTrue)
}

func TestPIDStepReverseStopOverridesGains(t *testing.T) {
	cfg, d := pidTestDerived()
	var p pidState
	p.reset(d, 0)
	p.integral = 5

	f := frame{pitch: 0, erpm: 0}
	p.step(cfg, d, f, 0, ReverseStop, 0, cfg.Hertz)
	test.That(t, p.integral, test.ShouldEqual, 0.0)
}

func TestPIDStepStartClicksDecrementAndStop(t *testing.T) {
	cfg, d := pidTestDerived()
	var p pidState
	p.reset(d, 0)
	test.That(t, p.startCounterClicks, test.ShouldEqual, d.StartCounterClicksMax)

	f := frame{pitch: 0, erpm: 0}
	for i := 0; i < d.StartCounterClicksMax; i++ {
		p.step(cfg, d, f, 0, TiltbackNone, 0, cfg.Hertz)
	}
	test.That(t, p.startCounterClicks, test.ShouldEqual, 0)
}

func TestPIDStepReset(t *testing.T) {
	d := Derived{StartCounterClicksMax: 2}
	p := pidState{integral: 5, lastProportional: 3, value: 2, currentLimiting: true, startCounterClicks: 0}
	p.reset(d, 0)
	test.That(t, p.integral, test.ShouldEqual, 0.0)
	test.That(t, p.lastProportional, test.ShouldEqual, 0.0)
	test.That(t, p.value, test.ShouldEqual, 0.0)
	test.That(t, p.currentLimiting, test.ShouldBeFalse)
	test.That(t, p.startCounterClicks, test.ShouldEqual, 2)
	test.That(t, p.clickPositive, test.ShouldBeTrue)
}

func TestPIDStepBrakingClampsAgainstProportionalSign(t *testing.T) {
	cfg, d := pidTestDerived()
	var p pidState
	p.reset(d, 0)

	// Pitch on the same side as erpm (so the P+D output opposes erpm) at
	// speed triggers the braking clamp path.
	f := frame{pitch: -10, erpm: -500, absERPM: 500}
	current := p.step(cfg, d, f, 0, TiltbackNone, 0, cfg.Hertz)
	test.That(t, current, test.ShouldNotEqual, 0.0)
}
