package balance

import "gonum.org/v1/gonum/floats"

const accelArraySize = 40

// frame is the per-tick sensor snapshot: read once, used for the rest of the
// tick, never retained beyond it.
type frame struct {
	pitch, lastPitch float64
	roll, absRoll    float64
	gyro             [3]float64
	yaw              float64
	erpm, absERPM    float64
	duty, absDuty    float64
	motorCurrent     float64
	fetTempC         float64
	vIn              float64
	adc1, adc2       float64

	accelerationRaw float64
	acceleration    float64
	accelCheck      float64
}

// accelRing is the fixed 40-sample moving-average ring for acceleration_raw,
// maintained with the sliding-window recurrence the source uses
// (accelavg += (new-old)/N) rather than a recomputed mean.
type accelRing struct {
	hist [accelArraySize]float64
	idx  int
	avg  float64
}

func (r *accelRing) push(raw float64) float64 {
	r.avg += (raw - r.hist[r.idx]) / float64(accelArraySize)
	r.hist[r.idx] = raw
	r.idx++
	if r.idx == accelArraySize {
		r.idx = 0
	}
	return r.avg
}

// debugAverage independently recomputes the ring mean by summing the full
// history, for telemetry/debug verification against the hot-path recurrence
// in push(); the two must always agree within floating-point error.
func (r *accelRing) debugAverage() float64 {
	return floats.Sum(r.hist[:]) / float64(accelArraySize)
}

func (r *accelRing) reset() {
	for i := range r.hist {
		r.hist[i] = 0
	}
	r.idx = 0
	r.avg = 0
}

// buildFrame assembles a new sensor frame from a fused pose, motor telemetry,
// and foot-pad ADC voltages, carrying lastPitch and the smoothed-erpm history
// forward from the previous tick so acceleration_raw can be derived.
func buildFrame(pose Pose, mt MotorTelemetry, adc1, adc2 float64, prevPitch float64, erpmSign float64, lastSmoothERPM float64, ring *accelRing) (frame, float64) {
	f := frame{
		pitch:     pose.PitchDeg,
		lastPitch: prevPitch,
		roll:      pose.RollDeg,
		yaw:       pose.YawDeg,
		gyro:      pose.GyroDPS,
		adc1:      adc1,
		adc2:      adc2,
		fetTempC:  mt.FetTempC,
		vIn:       mt.VIn,
		motorCurrent: mt.Current,
	}
	f.absRoll = absf(f.roll)

	f.erpm = erpmSign * mt.ERPM
	f.absERPM = absf(f.erpm)
	f.duty = mt.DutyCycle
	f.absDuty = absf(f.duty)

	smoothERPM := erpmSign * mt.SmoothERPM
	f.accelerationRaw = smoothERPM - lastSmoothERPM
	f.acceleration = ring.push(f.accelerationRaw)
	f.accelCheck = ring.debugAverage()

	return f, smoothERPM
}
