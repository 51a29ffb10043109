package balance

// turnTilt tracks yaw rate and leans the setpoint into sustained turns,
// boosting the lean with speed and backing off ("cutback") once the rider's
// own roll shows the turn is already banked.
type turnTilt struct {
	lastYawChange float64
	yawChange     float64
	yawAggregate  float64
	rollAggregate float64

	interpolated float64
	target       float64

	startERPM float64
	started   bool
}

func (t *turnTilt) reset() {
	t.lastYawChange = 0
	t.yawChange = 0
	t.yawAggregate = 0
	t.rollAggregate = 0
	t.interpolated = 0
	t.target = 0
	t.startERPM = 0
	t.started = false
}

// trackYaw folds the raw per-tick yaw delta into the smoothed yaw-change and
// yaw-aggregate signals, matching the wrap-guarded EMA in balance_thread's
// per-tick read block.
func (t *turnTilt) trackYaw(rawYawDelta float64) {
	newChange := rawYawDelta
	if newChange == 0 {
		newChange = t.lastYawChange
	}
	if absf(newChange) > 100 {
		newChange = t.lastYawChange
	}
	t.lastYawChange = newChange

	t.yawChange = 0.8*t.yawChange + 0.2*newChange
	t.yawChange = clamp(t.yawChange, -0.10, 0.10)

	if sign(t.yawChange) != sign(t.yawAggregate) {
		t.yawAggregate = 0
	}
	if absf(t.yawChange) > 0.04 {
		t.yawAggregate += t.yawChange
	}
}

// trackRoll accumulates the roll-aggregate signal used for banked-turn
// cutback detection: it only accumulates while the rider is leaned hard
// enough to plausibly be mid-turn.
func (t *turnTilt) trackRoll(roll float64) {
	if absf(roll) > 8 {
		t.rollAggregate += roll
	} else {
		t.rollAggregate = 0
	}
}

// apply runs one tick of turn-tilt and returns the new setpoint contribution
// plus whether a cutback (banked-turn) condition was detected this tick, so
// torque-tilt can damp itself accordingly.
func (t *turnTilt) apply(cfg Config, d Derived, f frame, noseangling, atrValue, atrMin, atrMax float64) (float64, bool) {
	cutback := sign(t.yawAggregate) == sign(f.roll) && absf(t.rollAggregate) > d.RollAggregateThreshold

	if f.absERPM < cfg.TurntiltStartERPM {
		t.startERPM = 0
		t.started = false
	} else if !t.started {
		t.startERPM = f.absERPM
		t.started = true
	}

	boost := 1.0
	if f.absERPM > cfg.TurntiltERPMBoostEnd {
		boost = 1 + cfg.TurntiltERPMBoostEnd*d.TurntiltBoostPerERPM
	} else if f.absERPM > cfg.TurntiltStartERPM {
		boost = 1 + (f.absERPM-cfg.TurntiltStartERPM)*d.TurntiltBoostPerERPM
	}
	if boost > 2 {
		boost = 2
	}

	target := cfg.TurntiltStrength * t.yawAggregate * boost

	atrScale := clamp(absf(atrValue)/cfg.TorquetiltAngleLimit, atrMin, atrMax)
	target *= atrScale

	if cutback {
		target = -target
	}

	target = clamp(target, -cfg.TurntiltAngleLimit, cfg.TurntiltAngleLimit)

	if absf(noseangling) > 4 {
		target = 0
		t.yawAggregate = 0
	}
	t.target = target

	step := d.TurntiltStepSize
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
	return t.interpolated, cutback
}
