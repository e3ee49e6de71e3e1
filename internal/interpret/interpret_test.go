package interpret

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() SessionSummary {
	return SessionSummary{
		Metadata: Metadata{
			SessionID:        "sess-001",
			Timestamp:        "2026-08-20T09:30:00Z",
			DurationMinutes:  30,
			Condition:        "resting",
			MedicationStatus: "on",
			TremorScoreScale: "0-10",
		},
		FrequencyProfile: FrequencyProfile{
			BandPowerMean:       BandPower{Hz46: 3.2, Hz68: 0.4, Hz812: 0.2},
			BandPowerStd:        BandPower{Hz46: 0.8, Hz68: 0.1, Hz812: 0.05},
			DominantBand:        "4_6_hz",
			DominanceRatio:      0.84,
			DominantBandPercent: 0.84,
			BandSwitchCount:     2,
		},
		IntensityProfile: IntensityProfile{
			TremorScore: TremorScoreStats{Mean: 4.2, Std: 1.1, Min: 1.0, Max: 7.5, P25: 3.4, P50: 4.1, P75: 5.0, P90: 6.2},
			RMSMean:     0.31,
		},
		WithinSessionTrend: WithinSessionTrend{
			LinearSlopePerMinute:   0.012,
			EarlyVsLateChangePct:   8.5,
			FatiguePatternDetected: true,
		},
		MultiSessionTrend: MultiSessionTrend{
			DominantBandConsistencyLast3: "consistent",
			TremorScoreWeeklySlope:       "+0.2/week",
			SeverityChangePercent:        "+5%",
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleSummary())

	for _, want := range []string{
		"SESSION METADATA:",
		"Session ID: sess-001",
		"FREQUENCY PROFILE:",
		"Dominant band: 4–6 Hz",
		"INTENSITY PROFILE:",
		"Mean tremor score: 4.20",
		"WITHIN-SESSION TREND:",
		"Fatigue pattern detected: Yes",
		"MULTI-SESSION TREND:",
		"Confidence level (Low / Moderate / High)",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestFormatBand(t *testing.T) {
	cases := []struct{ in, want string }{
		{"4_6_hz", "4–6 Hz"},
		{"6_8_hz", "6–8 Hz"},
		{"8_12_hz", "8–12 Hz"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatBand(tc.in))
	}
}

func TestExtractConfidence(t *testing.T) {
	cases := []struct{ text, want string }{
		{"Confidence Level: High (clean signal)", "High"},
		{"confidence is low here", "Low"},
		{"Confidence: Moderate", "Moderate"},
		{"no confidence statement at all", "Moderate"},
		// "High" wins when several levels are mentioned.
		{"high confidence despite low entropy", "High"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractConfidence(tc.text))
	}
}

func TestAnalyzePlaceholderWhenUnconfigured(t *testing.T) {
	c := NewClient(Config{}, nil)

	report := c.Analyze(context.Background(), sampleSummary())

	assert.Equal(t, "placeholder", report.Source)
	assert.Contains(t, report.ClinicalSummary, "Tremor Phenotype Assessment")
	// The placeholder text mentions "lower-intensity" windows, and the
	// confidence scan checks Low before Moderate.
	assert.Equal(t, "Low", report.ConfidenceLevel)
	assert.Contains(t, report.AdvisoryNote, "does not constitute a medical diagnosis")
}

func TestAnalyzeViaTunnel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tunnelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.SystemPrompt)
		assert.Contains(t, req.UserPrompt, "SESSION METADATA")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tunnelResponse{
			Response: "Assessment complete. Confidence Level: High",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{TunnelURL: srv.URL, Timeout: 5 * time.Second}, nil)
	report := c.Analyze(context.Background(), sampleSummary())

	assert.Equal(t, "tunnel", report.Source)
	assert.Equal(t, "High", report.ConfidenceLevel)
	assert.Contains(t, report.ClinicalSummary, "Assessment complete")
}

func TestAnalyzeTunnelErrorFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tunnelResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	m := &countingMetrics{}
	c := NewClient(Config{TunnelURL: srv.URL, Timeout: 5 * time.Second}, m)
	report := c.Analyze(context.Background(), sampleSummary())

	// No HF token configured, so the chain ends at the placeholder.
	assert.Equal(t, "placeholder", report.Source)
	assert.Equal(t, 1, m.analyzes)
	assert.Equal(t, 1, m.llmFailures)
}

func TestAnalyzeTunnelStatusErrorFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{TunnelURL: srv.URL, Timeout: 5 * time.Second}, nil)
	report := c.Analyze(context.Background(), sampleSummary())
	assert.Equal(t, "placeholder", report.Source)
}

func TestAnalyzeNeverEmptyReport(t *testing.T) {
	c := NewClient(Config{TunnelURL: "http://127.0.0.1:1/unreachable", Timeout: time.Second}, nil)
	report := c.Analyze(context.Background(), sampleSummary())

	assert.NotEmpty(t, report.ClinicalSummary)
	assert.NotEmpty(t, report.ConfidenceLevel)
	assert.NotEmpty(t, report.AdvisoryNote)
}

type countingMetrics struct {
	analyzes    int
	llmFailures int
}

func (m *countingMetrics) AnalyzeRequestsInc() { m.analyzes++ }
func (m *countingMetrics) LLMFailuresInc()     { m.llmFailures++ }
