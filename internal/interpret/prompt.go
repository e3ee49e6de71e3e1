package interpret

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are a clinical reasoning assistant specialized in tremor pattern interpretation. " +
	"You do not diagnose disease. You interpret structured tremor biomarkers and generate " +
	"professional clinical summaries including severity assessment, phenotype likelihood, " +
	"stability analysis, and uncertainty explanation."

// formatBand rewrites wire band labels for prose: "4_6_hz" -> "4–6 Hz".
func formatBand(label string) string {
	if label == "" {
		return "unknown"
	}
	out := strings.ReplaceAll(label, "_", "–")
	out = strings.ReplaceAll(out, "hz", "Hz")
	out = strings.ReplaceAll(out, "–Hz", " Hz")
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// BuildPrompt renders the structured summary as readable clinical text for
// the language model.
func BuildPrompt(s SessionSummary) string {
	bp := s.FrequencyProfile.BandPowerMean
	bpStd := s.FrequencyProfile.BandPowerStd
	ts := s.IntensityProfile.TremorScore
	dist := s.IntensityDistribution
	v := s.VariabilityProfile
	wt := s.WithinSessionTrend
	mt := s.MultiSessionTrend

	lines := []string{
		"SESSION METADATA:",
		fmt.Sprintf("  Session ID: %s", s.Metadata.SessionID),
		fmt.Sprintf("  Timestamp: %s", s.Metadata.Timestamp),
		fmt.Sprintf("  Duration: %g minutes", s.Metadata.DurationMinutes),
		fmt.Sprintf("  Condition: %s", s.Metadata.Condition),
		fmt.Sprintf("  Medication status: %s", s.Metadata.MedicationStatus),
		fmt.Sprintf("  Tremor score scale: %s", s.Metadata.TremorScoreScale),
		"",
		"FREQUENCY PROFILE:",
		fmt.Sprintf("  Band power mean – 4–6 Hz: %.3f, 6–8 Hz: %.3f, 8–12 Hz: %.3f", bp.Hz46, bp.Hz68, bp.Hz812),
		fmt.Sprintf("  Band power std  – 4–6 Hz: %.3f, 6–8 Hz: %.3f, 8–12 Hz: %.3f", bpStd.Hz46, bpStd.Hz68, bpStd.Hz812),
		fmt.Sprintf("  Dominant band: %s", formatBand(s.FrequencyProfile.DominantBand)),
		fmt.Sprintf("  Dominance ratio: %.2f", s.FrequencyProfile.DominanceRatio),
		fmt.Sprintf("  Dominant band percentage: %.1f%%", s.FrequencyProfile.DominantBandPercent*100),
		fmt.Sprintf("  Band switch count: %d", s.FrequencyProfile.BandSwitchCount),
		"",
		"INTENSITY PROFILE:",
		fmt.Sprintf("  Mean tremor score: %.2f", ts.Mean),
		fmt.Sprintf("  Std: %.2f  |  Min: %.2f  |  Max: %.2f", ts.Std, ts.Min, ts.Max),
		fmt.Sprintf("  Percentiles – p25: %.2f, p50: %.2f, p75: %.2f, p90: %.2f", ts.P25, ts.P50, ts.P75, ts.P90),
		fmt.Sprintf("  RMS mean: %.3f", s.IntensityProfile.RMSMean),
		fmt.Sprintf("  Noise-floor adjusted intensity: %.3f", s.IntensityProfile.NoiseFloorAdjustedIntensity),
		"",
		"INTENSITY DISTRIBUTION:",
		fmt.Sprintf("  Low: %.1f%%  |  Moderate: %.1f%%", dist.LowFraction*100, dist.ModerateFraction*100),
		fmt.Sprintf("  High: %.1f%%  |  Very high: %.1f%%", dist.HighFraction*100, dist.VeryHighFraction*100),
		"",
		"VARIABILITY PROFILE:",
		fmt.Sprintf("  Coefficient of variation: %.3f", v.CoefficientOfVariation),
		fmt.Sprintf("  Stability index: %.3f", v.StabilityIndex),
		fmt.Sprintf("  Spectral entropy: %.3f", v.SpectralEntropy),
		fmt.Sprintf("  Window-to-window variance: %.3f", v.WindowToWindowVariance),
		"",
		"WITHIN-SESSION TREND:",
		fmt.Sprintf("  Linear slope (score units/min): %.4f", wt.LinearSlopePerMinute),
		fmt.Sprintf("  Early vs late change: %.1f%%", wt.EarlyVsLateChangePct),
		fmt.Sprintf("  Fatigue pattern detected: %s", yesNo(wt.FatiguePatternDetected)),
		"",
		"MULTI-SESSION TREND:",
		fmt.Sprintf("  Dominant band consistency (last 3): %s", mt.DominantBandConsistencyLast3),
		fmt.Sprintf("  Weekly slope: %s", mt.TremorScoreWeeklySlope),
		fmt.Sprintf("  Severity change: %s", mt.SeverityChangePercent),
		fmt.Sprintf("  Band shift detected: %s", yesNo(mt.BandShiftDetected)),
	}

	request := "\n\nBased on the above biomarkers, provide:\n" +
		"1. Likely tremor phenotype\n" +
		"2. Severity interpretation\n" +
		"3. Stability and variability analysis\n" +
		"4. Within-session trend interpretation\n" +
		"5. Multi-session trend interpretation\n" +
		"6. Confidence level (Low / Moderate / High)\n" +
		"7. Non-diagnostic advisory disclaimer"

	return strings.Join(lines, "\n") + request
}
