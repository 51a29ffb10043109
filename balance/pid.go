package balance

const (
	startCenterDelayMS = 1000
	maxDiMult           = 1.7
)

// pidState holds every accumulator the gain-scheduled PID loop carries
// across ticks: the integral/derivative history, the smoothed kp/ki/kd
// gains, the center-boost/center-jerk startup transients, and the output
// smoothing/saturation state.
type pidState struct {
	integral         float64
	lastProportional float64
	derivFilter      pt1

	// kp, ki, kd are the gains actually applied this tick, smoothed toward
	// their target (torque-tilt-scaled, capped) values rather than snapping,
	// matching the firmware's ~50ms stiffen / ~500ms loosen feel.
	kp, ki, kd float64

	centerStiffnessElapsedMS float64
	centerJerkCounter        int
	centerJerkAdder          float64

	value           float64
	currentLimiting bool

	startCounterClicks int
	clickPositive      bool
}

func (p *pidState) reset(d Derived, pitch float64) {
	p.integral = 0
	p.lastProportional = 0
	p.derivFilter.reset()
	if d.UseSoftStart {
		p.kp, p.ki, p.kd = 1, 0, 0
	} else {
		p.kp, p.ki, p.kd = d.KPAcc*0.8, d.KIAcc, 0
	}
	p.centerStiffnessElapsedMS = 0
	p.centerJerkCounter = 0
	p.centerJerkAdder = 0
	p.value = 0
	p.currentLimiting = false
	p.startCounterClicks = d.StartCounterClicksMax
	p.clickPositive = true
}

// step runs one tick of the PID/current-shaping pipeline and returns the
// motor current command in amps, positive for forward torque.
func (p *pidState) step(
	cfg Config, d Derived, f frame,
	setpoint float64,
	mode SetpointAdjustmentType,
	torquetiltInterpolated float64,
	loopHz float64,
) float64 {
	proportional := setpoint - f.pitch
	absProp := absf(proportional)

	erpmScaling := f.absERPM / 2500
	if erpmScaling < 0.3 {
		erpmScaling = 0.3
	}

	braking := sign(proportional) != sign(f.erpm) && f.absERPM > 250

	// Integral, only partially affected by torquetilt: a lifted nose/tail
	// shouldn't get fought by the integral term the same way a genuine
	// balance error would.
	p.integral += proportional
	ttImpact := d.IntegralTTImpactUphill
	if torquetiltInterpolated >= 0 {
		const maxImpactERPM = 2500
		const startingImpact = 0.3
		if f.absERPM < maxImpactERPM {
			scaling := f.absERPM / maxImpactERPM
			if scaling < startingImpact {
				scaling = startingImpact
			}
			ttImpact = 1 - (1-ttImpact)*scaling
		}
	} else {
		ttImpact = d.IntegralTTImpactDownhill
	}
	p.integral -= torquetiltInterpolated * ttImpact

	derivativeRaw := p.lastProportional - proportional
	derivative := p.derivFilter.process(derivativeRaw)

	// Gain scheduling: stiffen kp/kd (and, less aggressively, ki) the more
	// torque-tilt is leaning the setpoint, since that's exactly when the
	// board needs more authority to hold the line.
	pMultiplier := 1.0
	diMultiplier := 1.0
	if absf(torquetiltInterpolated) > 2 {
		pMultiplier = absf(torquetiltInterpolated) / 6 * d.TTPIDIntensity
		diMultiplier = minf(1+pMultiplier/2, maxDiMult)
		pMultiplier = minf(1+pMultiplier, 2)
	}
	kpTarget := d.KPAcc * pMultiplier
	kiTarget := d.KIAcc * diMultiplier
	kdTarget := d.KDAcc
	if absProp > d.CenterBoostAngle+0.5 {
		// Reduce kd (kept high by default for stiff center balancing) once
		// we're far from center.
		kdTarget = kdTarget * diMultiplier / maxDiMult
	}

	switch {
	case mode >= TiltbackNone:
		if kpTarget > p.kp {
			p.kp = p.kp*0.98 + kpTarget*0.02
			p.ki = p.ki*0.98 + kiTarget*0.02
		} else {
			p.kp = p.kp*0.998 + kpTarget*0.002
			p.ki = p.ki*0.998 + kiTarget*0.002
		}
		p.kd = p.kd*0.98 + kdTarget*0.02
	case mode == Centering:
		p.kp = p.kp*0.995 + kpTarget*0.005
		p.ki = p.ki*0.995 + kiTarget*0.005
		p.kd = p.kd*0.995 + kdTarget*0.005
	case mode == ReverseStop:
		kpTarget, kdTarget = 2, 400
		p.integral = 0
		p.kp = p.kp*0.99 + kpTarget*0.01
		p.kd = p.kd*0.99 + kdTarget*0.01
		p.ki = 0
	}

	var pidProportional, pidDerivative, pidIntegral float64

	if d.UseSoftStart && mode == Centering {
		pidProportional = p.kp * proportional
		pidDerivative = p.kd * derivative
		p.value = 0.05*(pidProportional+pidDerivative) + 0.95*p.value
		p.integral = 0
		p.ki = 0
	} else {
		pidProportional = p.kp * proportional
		centerBoost := minf(absProp, d.CenterBoostAngle)
		accelBoost := 0.0

		if p.centerStiffnessElapsedMS < startCenterDelayMS {
			pidProportional += centerBoost * d.CenterBoostKpAdder * sign(proportional) *
				(startCenterDelayMS - p.centerStiffnessElapsedMS) / startCenterDelayMS
			p.centerStiffnessElapsedMS++

			if d.CenterJerkDurationMS > 0 && p.centerJerkCounter < d.CenterJerkDurationMS {
				if p.centerJerkCounter > d.CenterJerkDurationMS/2 {
					p.centerJerkAdder = p.centerJerkAdder*0.95 + d.CenterJerkStrength*0.05
				} else {
					p.centerJerkAdder = p.centerJerkAdder*0.95 - d.CenterJerkStrength*0.05
				}
				pidProportional += p.centerJerkAdder
				p.centerJerkCounter++
			}
		} else {
			pidProportional += centerBoost * d.CenterBoostKpAdder * sign(proportional)

			if absProp > d.AccelBoostThreshold && !braking {
				boostProp := absProp - d.AccelBoostThreshold
				accelBoost = boostProp * p.kp * d.AccelBoostIntensity
				if absProp > d.AccelBoostThreshold2 {
					boostProp = absProp - d.AccelBoostThreshold2
					accelBoost += boostProp * p.kp * d.AccelBoostIntensity
				}
			}
			pidProportional += accelBoost * sign(proportional)
		}

		pidDerivative = p.kd * derivative
		if absf(pidDerivative) > d.MaxDerivative {
			pidDerivative = d.MaxDerivative * sign(pidDerivative)
		}

		newPD := pidProportional + pidDerivative
		if sign(f.erpm) != sign(newPD) {
			pidMax := d.MaxBrakeAmps
			if absf(pidProportional) > pidMax {
				pidMax = absf(pidProportional)
			}
			tt := absf(torquetiltInterpolated)
			if tt > 2 {
				pidMax *= 0.75 + tt/8
			}
			if f.absERPM > 2000 {
				pidMax *= 0.8 + f.absERPM/10000
			}
			if absf(newPD) > pidMax {
				newPD = sign(newPD) * pidMax
			}
		}

		pidIntegral = p.ki * p.integral
		p.value = 0.2*(newPD+pidIntegral) + 0.8*p.value
	}

	p.lastProportional = proportional

	maxCurrent := d.MCCurrentMax - 3
	minCurrent := d.MCCurrentMin + 3
	p.currentLimiting = false
	if p.value > maxCurrent {
		p.value = maxCurrent
		p.currentLimiting = true
	}
	if p.value < minCurrent {
		p.value = minCurrent
		p.currentLimiting = true
	}

	if p.startCounterClicks > 0 {
		click := d.ClickCurrent
		if !p.clickPositive {
			click = -click
		}
		p.startCounterClicks--
		return p.value + click
	}

	return p.value
}
