package balance

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/resource"
)

// ShutdownMode selects how long the controller idles in a fault state before
// nagging the rider with an inactivity beep, mirroring the firmware's
// shutdown_mode enum.
type ShutdownMode int

const (
	ShutdownAfter10s ShutdownMode = iota
	ShutdownAfter1m
	ShutdownAfter5m
	ShutdownAfter10m
	ShutdownAfter30m
	ShutdownAfter1h
	ShutdownAfter5h
	ShutdownNever
)

// NRFBoostOverride optionally replaces the accel-boost thresholds, the way
// the firmware repurposes an unrelated NRF radio config block for tuning
// when its retry_delay/retries fields match a specific sentinel pair.
type NRFBoostOverride struct {
	RetryDelayUs int     `json:"retry_delay_us,omitempty"`
	Retries      int     `json:"retries,omitempty"`
	Address0     float64 `json:"address0,omitempty"`
	Address1     float64 `json:"address1,omitempty"`
	Address2     float64 `json:"address2,omitempty"`
}

// Config describes the configuration of a balance controller. Field names
// follow the original firmware's balance_config naming where a field maps
// 1:1; fields that only exist to carry an encoded/borrowed legacy value keep
// the original slot's name in the json tag, decoded in Derive().
type Config struct {
	Board            string `json:"board,omitempty"`
	FootSwitchADC1   string `json:"foot_switch_adc1,omitempty"`
	FootSwitchADC2   string `json:"foot_switch_adc2,omitempty"`
	BuzzerPin        string `json:"buzzer_pin,omitempty"`
	MovementSensor   string `json:"movement_sensor,omitempty"`
	MotorPortName    string `json:"motor_port,omitempty"`

	Hertz          float64 `json:"hertz,omitempty"`
	LoopTimeFilter float64 `json:"loop_time_filter,omitempty"`
	InvertDirection bool   `json:"invert_direction,omitempty"`

	StartupPitchTolerance float64 `json:"startup_pitch_tolerance,omitempty"`
	StartupRollTolerance  float64 `json:"startup_roll_tolerance,omitempty"`
	StartupSpeed          float64 `json:"startup_speed,omitempty"`
	Deadzone              float64 `json:"deadzone,omitempty"`

	TiltbackDuty          float64 `json:"tiltback_duty,omitempty"`
	TiltbackDutyAngle     float64 `json:"tiltback_duty_angle,omitempty"`
	TiltbackDutySpeed     float64 `json:"tiltback_duty_speed,omitempty"`
	TiltbackHV            float64 `json:"tiltback_hv,omitempty"`
	TiltbackHVAngle       float64 `json:"tiltback_hv_angle,omitempty"`
	TiltbackHVSpeed       float64 `json:"tiltback_hv_speed,omitempty"`
	TiltbackLV            float64 `json:"tiltback_lv,omitempty"`
	TiltbackLVAngle       float64 `json:"tiltback_lv_angle,omitempty"`
	TiltbackLVSpeed       float64 `json:"tiltback_lv_speed,omitempty"`
	TiltbackReturnSpeed   float64 `json:"tiltback_return_speed,omitempty"`
	TiltbackVariable      float64 `json:"tiltback_variable,omitempty"`
	TiltbackVariableMax   float64 `json:"tiltback_variable_max,omitempty"`
	TiltbackConstant      float64 `json:"tiltback_constant,omitempty"`
	TiltbackConstantERPM  float64 `json:"tiltback_constant_erpm,omitempty"`
	NoseanglingSpeed      float64 `json:"noseangling_speed,omitempty"`

	FaultPitch          float64 `json:"fault_pitch,omitempty"`
	FaultDelayPitch     float64 `json:"fault_delay_pitch,omitempty"`
	FaultRoll           float64 `json:"fault_roll,omitempty"`
	FaultDelayRoll      float64 `json:"fault_delay_roll,omitempty"`
	FaultDuty           float64 `json:"fault_duty,omitempty"`
	FaultDelayDuty      float64 `json:"fault_delay_duty,omitempty"`
	FaultADC1           float64 `json:"fault_adc1,omitempty"`
	FaultADC2           float64 `json:"fault_adc2,omitempty"`
	FaultADCHalfERPM    float64 `json:"fault_adc_half_erpm,omitempty"`
	FaultDelaySwitchFull float64 `json:"fault_delay_switch_full,omitempty"`
	FaultDelaySwitchHalf float64 `json:"fault_delay_switch_half,omitempty"`

	KP float64 `json:"kp,omitempty"`
	KI float64 `json:"ki,omitempty"`
	KD float64 `json:"kd,omitempty"`

	TorquetiltStrength     float64 `json:"torquetilt_strength,omitempty"`
	TorquetiltOnSpeed      float64 `json:"torquetilt_on_speed,omitempty"`
	TorquetiltOffSpeed     float64 `json:"torquetilt_off_speed,omitempty"`
	TorquetiltAngleLimit   float64 `json:"torquetilt_angle_limit,omitempty"`
	TorquetiltStartCurrent float64 `json:"torquetilt_start_current,omitempty"`
	TorquetiltFilter       float64 `json:"torquetilt_filter,omitempty"`

	TurntiltStartAngle  float64 `json:"turntilt_start_angle,omitempty"`
	TurntiltStrength    float64 `json:"turntilt_strength,omitempty"`
	TurntiltSpeed       float64 `json:"turntilt_speed,omitempty"`
	TurntiltAngleLimit  float64 `json:"turntilt_angle_limit,omitempty"`
	TurntiltStartERPM   float64 `json:"turntilt_start_erpm,omitempty"`
	TurntiltERPMBoost   float64 `json:"turntilt_erpm_boost,omitempty"`
	TurntiltERPMBoostEnd float64 `json:"turntilt_erpm_boost_end,omitempty"`

	BrakeCurrent float64 `json:"brake_current,omitempty"`
	BrakeTimeout float64 `json:"brake_timeout,omitempty"`

	MCCurrentMax  float64 `json:"mc_current_max,omitempty"`
	MCCurrentMin  float64 `json:"mc_current_min,omitempty"`
	MCTempFetStart float64 `json:"mc_temp_fet_start,omitempty"`

	ShutdownMode ShutdownMode `json:"shutdown_mode,omitempty"`
	MultiESC     bool         `json:"multi_esc,omitempty"`
	NRFChannel   int          `json:"nrf_channel,omitempty"`

	// Legacy/borrowed slots, decoded in Derive(); kept under their original
	// firmware names so the borrowed-slot encoding stays recognizable.
	RollSteerERPMKp     float64 `json:"roll_steer_erpm_kp,omitempty"`
	YawCurrentClamp     float64 `json:"yaw_current_clamp,omitempty"`
	YawKi               float64 `json:"yaw_ki,omitempty"`
	YawKp               float64 `json:"yaw_kp,omitempty"`
	YawKd               float64 `json:"yaw_kd,omitempty"`
	BoosterAngle        float64 `json:"booster_angle,omitempty"`
	BoosterRamp         float64 `json:"booster_ramp,omitempty"`
	BoosterCurrent      float64 `json:"booster_current,omitempty"`
	KdBiquadLowpass     float64 `json:"kd_biquad_lowpass,omitempty"`
	KdBiquadHighpass    float64 `json:"kd_biquad_highpass,omitempty"`
	KdPT1HighpassFreq   float64 `json:"kd_pt1_highpass_frequency,omitempty"`
	KdPT1LowpassFreq    float64 `json:"kd_pt1_lowpass_frequency,omitempty"`
	RollSteerKp         float64 `json:"roll_steer_kp,omitempty"`

	NRFBoost *NRFBoostOverride `json:"nrf_boost,omitempty"`
}

// Model for the onewheel-class balance controller service.
var Model = resource.NewModel("viam", "balance", "controller")

// Validate ensures the config is structurally sound and returns the names of
// dependencies the controller resolves at construction time.
func (c *Config) Validate(path string) ([]string, []string, error) {
	var deps []string
	if c.Board == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "board")
	}
	deps = append(deps, c.Board)

	if c.FootSwitchADC1 == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "foot_switch_adc1")
	}
	if c.MovementSensor == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "movement_sensor")
	}
	deps = append(deps, c.MovementSensor)

	if c.MotorPortName == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "motor_port")
	}
	deps = append(deps, c.MotorPortName)

	if c.Hertz <= 0 {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "hertz")
	}
	if c.MCCurrentMax <= 0 || c.MCCurrentMin >= 0 {
		return nil, nil, errors.New("mc_current_max must be positive and mc_current_min must be negative")
	}

	return deps, nil, nil
}

// Derived holds every value computed once from Config by Derive(), including
// the decoded legacy/encoded sub-flags. It is recomputed whenever Config
// changes and never mutated by the hot loop.
type Derived struct {
	LoopTime            float64
	MotorTimeoutSeconds float64

	StartupStepSize        float64
	TiltbackDutyStepSize   float64
	TiltbackHVStepSize     float64
	TiltbackLVStepSize     float64
	TiltbackReturnStepSize float64
	TorquetiltOnStepSize   float64
	TorquetiltOffStepSize  float64
	TurntiltStepSize       float64
	NoseanglingStepSize    float64

	StartCounterClicksMax int
	ClickCurrent          float64

	UseReverseStop        bool
	ReverseTolerance      float64
	ReverseStopStepSize   float64
	UseSoftStart          bool

	CenterJerkDurationMS int
	CenterJerkStrength   float64

	AllowHighSpeedFullSwitchFaults bool

	YawAggregateTarget    float64
	TurntiltBoostPerERPM  float64
	CutbackEnable         bool
	CutbackMinspeed       float64
	RollAggregateThreshold float64

	KPAcc, KIAcc, KDAcc float64

	TTPIDIntensity     float64
	TTStrengthUphill   float64
	TTStrengthDownhill float64
	AccelFactor        float64

	IntegralTTImpactDownhill float64
	IntegralTTImpactUphill   float64

	LoopOvershootAlpha float64
	DPT1CutoffHz       float64

	TorquetiltFilterHz float64

	CenterBoostAngle   float64
	CenterBoostKpAdder float64

	AccelBoostThreshold  float64
	AccelBoostThreshold2 float64
	AccelBoostIntensity  float64

	MaxBrakeAmps  float64
	MaxDerivative float64

	AccelBiquadCutoffHz float64

	TTTBrakeRatio float64

	TiltbackVariablePerERPM float64
	TiltbackVariableMaxERPM float64

	ERPMSign float64

	MCCurrentMax   float64
	MCCurrentMin   float64
	MCMaxTempFet   float64

	InactivityTimeoutSeconds float64

	MultiESC bool
}

const (
	boostThresholdDefault  = 8
	boostThreshold2Default = 14
	boostIntensityDefault  = 0.5
)

// Derive centralizes every encoded-fraction and borrowed-config-slot decode
// into a single, cleanly typed struct, matching the firmware's
// app_balance_configure.
func Derive(c Config) Derived {
	var d Derived

	d.LoopTime = 1.0 / c.Hertz
	d.MotorTimeoutSeconds = d.LoopTime * 20

	d.StartupStepSize = c.StartupSpeed / c.Hertz
	d.TiltbackDutyStepSize = c.TiltbackDutySpeed / c.Hertz
	d.TiltbackHVStepSize = c.TiltbackHVSpeed / c.Hertz
	d.TiltbackLVStepSize = c.TiltbackLVSpeed / c.Hertz
	d.TiltbackReturnStepSize = c.TiltbackReturnSpeed / c.Hertz
	d.TorquetiltOnStepSize = c.TorquetiltOnSpeed / c.Hertz
	d.TorquetiltOffStepSize = c.TorquetiltOffSpeed / c.Hertz
	d.TurntiltStepSize = c.TurntiltSpeed / c.Hertz
	d.NoseanglingStepSize = c.NoseanglingSpeed / c.Hertz

	d.StartCounterClicksMax = 2
	bc := float64(int(c.BrakeCurrent))
	d.ClickCurrent = minf((c.BrakeCurrent-bc)*100, 30)

	d.UseReverseStop = false
	d.ReverseTolerance = 50000
	d.ReverseStopStepSize = 100.0 / c.Hertz

	ss := c.StartupSpeed
	ssInt := float64(int(ss))
	ssRest := ss - ssInt
	switch {
	case ssRest > 0.09 && ssRest < 0.11:
		d.UseReverseStop = true
	case ssRest > 0.19 && ssRest < 0.21:
		d.StartCounterClicksMax = 0
	case ssRest > 0.29 && ssRest < 0.31:
		d.StartCounterClicksMax = 0
		d.UseReverseStop = true
	}
	d.UseSoftStart = c.StartupSpeed < 10

	d.CenterJerkDurationMS = int(c.RollSteerERPMKp)
	d.CenterJerkStrength = c.YawCurrentClamp
	if d.CenterJerkStrength > 50 || d.CenterJerkStrength < -50 {
		d.CenterJerkStrength = 0
	}
	if d.CenterJerkDurationMS > 100 {
		d.CenterJerkDurationMS = 0
	}

	fullswitchDelay := int(c.FaultDelaySwitchFull) / 10
	delayRest := int(c.FaultDelaySwitchFull) - fullswitchDelay*10
	d.AllowHighSpeedFullSwitchFaults = delayRest != 1

	d.YawAggregateTarget = c.YawKi
	d.TurntiltBoostPerERPM = c.TurntiltERPMBoost / 100.0 / c.TurntiltERPMBoostEnd
	d.CutbackEnable = true
	d.CutbackMinspeed = 2000
	d.RollAggregateThreshold = 5000

	d.KPAcc = minf(c.KP, 10)
	d.KIAcc = minf(c.KI, 0.01)
	d.KDAcc = minf(c.KD, 1500)

	d.TTPIDIntensity = clamp(c.BoosterCurrent, 0, 1.5)

	d.TTStrengthUphill = c.TorquetiltStrength * 10
	if d.TTStrengthUphill > 2.5 {
		d.TTStrengthUphill = 1.5
	}
	if d.TTStrengthUphill < 0 {
		d.TTStrengthUphill = 0
	}
	d.TTStrengthDownhill = d.TTStrengthUphill * (1 + c.YawKp/100)
	d.AccelFactor = c.YawKd

	d.IntegralTTImpactDownhill = clamp(1.0-c.KdBiquadLowpass/100.0, 0, 1)
	d.IntegralTTImpactUphill = clamp(1.0-c.KdBiquadHighpass/100.0, 0, 1)

	if c.LoopTimeFilter > 0 {
		twoPiT := 2 * piConst * (1 / c.Hertz) * c.LoopTimeFilter
		d.LoopOvershootAlpha = twoPiT / (twoPiT + 1)
	}

	dtFilterFreq := c.KdPT1LowpassFreq
	if dtFilterFreq < 1 {
		dtFilterFreq = 10
	}
	if dtFilterFreq > 30 {
		dtFilterFreq = 10
	}
	d.DPT1CutoffHz = dtFilterFreq

	ttFilter := c.TorquetiltFilter
	if ttFilter == 0 {
		ttFilter = 5
	}
	if ttFilter > 30 {
		ttFilter = 30
	}
	d.TorquetiltFilterHz = ttFilter

	d.CenterBoostAngle = c.BoosterAngle
	d.CenterBoostKpAdder = (c.BoosterRamp/3.5)*d.KPAcc - d.KPAcc
	if d.CenterBoostKpAdder < 0 {
		d.CenterBoostKpAdder = 1
	}
	if d.CenterBoostAngle > 3 {
		d.CenterBoostAngle = 1
	}
	d.CenterBoostKpAdder = minf(d.CenterBoostKpAdder, 7)

	d.AccelBoostThreshold = boostThresholdDefault
	d.AccelBoostThreshold2 = boostThreshold2Default
	d.AccelBoostIntensity = boostIntensityDefault
	if c.NRFBoost != nil && c.NRFBoost.RetryDelayUs == 3750 && c.NRFBoost.Retries == 13 {
		d.AccelBoostThreshold = c.NRFBoost.Address0
		d.AccelBoostThreshold2 = c.NRFBoost.Address1
		d.AccelBoostIntensity = c.NRFBoost.Address2 / 10.0
		switch {
		case d.AccelBoostThreshold < 4 || d.AccelBoostThreshold > 20:
			d.AccelBoostIntensity = 0
		case d.AccelBoostThreshold2 < d.AccelBoostThreshold || d.AccelBoostThreshold2 > 20:
			d.AccelBoostIntensity = 0
		case d.AccelBoostIntensity < 0 || d.AccelBoostIntensity > 1:
			d.AccelBoostIntensity = 0
		}
	}

	d.MaxBrakeAmps = c.RollSteerKp
	if d.MaxBrakeAmps < 10 {
		d.MaxBrakeAmps = c.MCCurrentMax / 2
	}
	mb := float64(int(d.MaxBrakeAmps))
	d.MaxDerivative = 100 * (d.MaxBrakeAmps - mb)
	if d.MaxDerivative < 10 {
		d.MaxDerivative = c.MCCurrentMax / 2
	}

	cutoffFreq := clamp(50, 10, 100)
	d.AccelBiquadCutoffHz = cutoffFreq

	ratio := clamp(c.KdPT1HighpassFreq, 1, 20)
	d.TTTBrakeRatio = (21.0 - ratio) / 4.0

	d.TiltbackVariablePerERPM = c.TiltbackVariable / 1000
	if d.TiltbackVariablePerERPM > 0 {
		d.TiltbackVariableMaxERPM = absf(c.TiltbackVariableMax / d.TiltbackVariablePerERPM)
	} else {
		d.TiltbackVariableMaxERPM = 100000
	}

	if c.InvertDirection {
		d.ERPMSign = -1
	} else {
		d.ERPMSign = 1
	}

	d.MCCurrentMax = c.MCCurrentMax
	d.MCCurrentMin = c.MCCurrentMin
	d.MCMaxTempFet = c.MCTempFetStart - 2

	switch c.ShutdownMode {
	case ShutdownAfter10s:
		d.InactivityTimeoutSeconds = 10
	case ShutdownAfter1m:
		d.InactivityTimeoutSeconds = 60
	case ShutdownAfter5m:
		d.InactivityTimeoutSeconds = 60 * 5
	case ShutdownAfter10m:
		d.InactivityTimeoutSeconds = 60 * 10
	case ShutdownAfter30m:
		d.InactivityTimeoutSeconds = 60 * 30
	case ShutdownAfter1h:
		d.InactivityTimeoutSeconds = 60 * 60
	case ShutdownAfter5h:
		d.InactivityTimeoutSeconds = 60 * 60 * 5
	default:
		d.InactivityTimeoutSeconds = 0
	}

	d.MultiESC = c.MultiESC

	return d
}

const piConst = 3.14159265358979323846

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
