// Package interpret turns structured tremor session summaries into
// natural-language clinical reports. It forwards the summary to a
// large-language-model endpoint and falls back to deterministic rule-based
// text generation when no endpoint is reachable. The chain is: configured
// tunnel endpoint, then the HuggingFace Inference API, then the built-in
// placeholder report.
package interpret

// BandPower holds per-band power statistics.
type BandPower struct {
	Hz46  float64 `json:"hz_4_6"`
	Hz68  float64 `json:"hz_6_8"`
	Hz812 float64 `json:"hz_8_12"`
}

// Metadata describes the recording session.
type Metadata struct {
	SessionID        string  `json:"session_id"`
	Timestamp        string  `json:"timestamp"`
	DurationMinutes  float64 `json:"duration_minutes"`
	SamplingRateHz   float64 `json:"sampling_rate_hz"`
	Condition        string  `json:"condition"`
	MedicationStatus string  `json:"medication_status"`
	TremorScoreScale string  `json:"tremor_score_scale"`
}

// FrequencyProfile summarizes band-power behavior over the session.
type FrequencyProfile struct {
	BandPowerMean       BandPower `json:"band_power_mean"`
	BandPowerStd        BandPower `json:"band_power_std"`
	DominantBand        string    `json:"dominant_band"`
	DominanceRatio      float64   `json:"dominance_ratio"`
	DominantBandPercent float64   `json:"dominant_band_percentage"`
	BandSwitchCount     int       `json:"band_switch_count"`
}

// TremorScoreStats holds distribution statistics of the tremor score.
type TremorScoreStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
}

// IntensityProfile summarizes tremor intensity.
type IntensityProfile struct {
	TremorScore                 TremorScoreStats `json:"tremor_score"`
	RMSMean                     float64          `json:"rms_mean"`
	NoiseFloorAdjustedIntensity float64          `json:"noise_floor_adjusted_intensity"`
}

// IntensityDistribution buckets session time by intensity level.
type IntensityDistribution struct {
	LowFraction      float64 `json:"low_fraction"`
	ModerateFraction float64 `json:"moderate_fraction"`
	HighFraction     float64 `json:"high_fraction"`
	VeryHighFraction float64 `json:"very_high_fraction"`
}

// VariabilityProfile captures signal stability measures.
type VariabilityProfile struct {
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	StabilityIndex         float64 `json:"stability_index"`
	SpectralEntropy        float64 `json:"spectral_entropy"`
	WindowToWindowVariance float64 `json:"window_to_window_variance"`
}

// WithinSessionTrend describes drift within one session.
type WithinSessionTrend struct {
	LinearSlopePerMinute   float64 `json:"linear_slope_per_minute_score_units"`
	EarlyVsLateChangePct   float64 `json:"early_vs_late_change_percent"`
	FatiguePatternDetected bool    `json:"fatigue_pattern_detected"`
}

// MultiSessionTrend describes drift across recent sessions.
type MultiSessionTrend struct {
	DominantBandConsistencyLast3 string `json:"dominant_band_consistency_last_3"`
	TremorScoreWeeklySlope       string `json:"tremor_score_weekly_slope"`
	SeverityChangePercent        string `json:"severity_change_percent"`
	BandShiftDetected            bool   `json:"band_shift_detected"`
}

// SessionSummary is the structured biomarker summary the wearable pipeline
// computes upstream. Absent fields decode to zero values.
type SessionSummary struct {
	Metadata              Metadata              `json:"metadata"`
	FrequencyProfile      FrequencyProfile      `json:"frequency_profile"`
	IntensityProfile      IntensityProfile      `json:"intensity_profile"`
	IntensityDistribution IntensityDistribution `json:"intensity_distribution"`
	VariabilityProfile    VariabilityProfile    `json:"variability_profile"`
	WithinSessionTrend    WithinSessionTrend    `json:"within_session_trend"`
	MultiSessionTrend     MultiSessionTrend     `json:"multi_session_trend"`
}

// Report is the clinical interpretation returned to the caller.
type Report struct {
	ClinicalSummary string `json:"clinical_summary"`
	ConfidenceLevel string `json:"confidence_level"`
	AdvisoryNote    string `json:"advisory_note"`
	Source          string `json:"source,omitempty"`
}
