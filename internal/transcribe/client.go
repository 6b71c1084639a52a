package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"batchscribe/internal/audio"
	"batchscribe/internal/model"
)

// Segment is one raw caption triple from the service, with timestamps
// relative to the start of the chunk it was transcribed from.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// LatencyObserver receives the wall-clock latency of every attempt,
// successful or not.
type LatencyObserver interface {
	ObserveLatency(modelID string, latency time.Duration)
}

// Client sends one encoded audio payload per request to a generateContent
// style endpoint and parses the schema-constrained JSON response.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   LatencyObserver
}

// NewClient creates a transcription client. observer may be nil.
func NewClient(baseURL, apiKey string, timeout time.Duration, observer LatencyObserver) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		observer:   observer,
	}
}

// generateContent request/response wire shapes.

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type schemaProperty struct {
	Type string `json:"type"`
}

type responseSchema struct {
	Type  string `json:"type"`
	Items struct {
		Type       string                    `json:"type"`
		Properties map[string]schemaProperty `json:"properties"`
		Required   []string                  `json:"required"`
	} `json:"items"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"response_mime_type"`
	ResponseSchema   responseSchema `json:"response_schema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func captionSchema() responseSchema {
	var s responseSchema
	s.Type = "ARRAY"
	s.Items.Type = "OBJECT"
	s.Items.Properties = map[string]schemaProperty{
		"start": {Type: "NUMBER"},
		"end":   {Type: "NUMBER"},
		"text":  {Type: "STRING"},
	}
	s.Items.Required = []string{"start", "end", "text"}
	return s
}

// Transcribe sends one chunk payload to the given model profile and returns
// the raw chunk-relative segments. All failures carry a Category; the
// attempt's wall-clock latency is observed regardless of outcome.
func (c *Client) Transcribe(ctx context.Context, payload *audio.Payload, profile model.Profile) ([]Segment, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: profile.Instruction},
				{InlineData: &inlineData{
					MimeType: payload.MediaType,
					Data:     payload.EncodedAudio(),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   captionSchema(),
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, transientErr("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, profile.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, transientErr("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveLatency(profile.ID, latency)
	}
	if err != nil {
		return nil, transientErr("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if isQuotaStatus(resp.StatusCode, respBody) {
			return nil, quotaErr("model %s rate limited (status %d)", profile.ID, resp.StatusCode)
		}
		return nil, transientErr("model %s returned status %d: %s",
			profile.ID, resp.StatusCode, truncate(respBody, 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, malformedErr("decode response envelope: %w", err)
	}
	if gr.Error != nil {
		if gr.Error.Status == "RESOURCE_EXHAUSTED" || gr.Error.Code == http.StatusTooManyRequests {
			return nil, quotaErr("model %s quota exhausted: %s", profile.ID, gr.Error.Message)
		}
		return nil, transientErr("model %s API error %d: %s", profile.ID, gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, malformedErr("response has no candidates")
	}

	return parseSegments(gr.Candidates[0].Content.Parts[0].Text)
}

// parseSegments validates the model's JSON text against the declared output
// contract: an array (possibly empty) of objects with required numeric
// start/end and non-empty string text.
func parseSegments(text string) ([]Segment, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, malformedErr("response is not a JSON array: %w", err)
	}

	segments := make([]Segment, 0, len(raw))
	for i, obj := range raw {
		seg, err := parseSegment(obj)
		if err != nil {
			return nil, malformedErr("element %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func parseSegment(obj map[string]json.RawMessage) (Segment, error) {
	var seg Segment
	if err := requireNumber(obj, "start", &seg.Start); err != nil {
		return seg, err
	}
	if err := requireNumber(obj, "end", &seg.End); err != nil {
		return seg, err
	}
	rawText, ok := obj["text"]
	if !ok {
		return seg, fmt.Errorf("missing field %q", "text")
	}
	if err := json.Unmarshal(rawText, &seg.Text); err != nil {
		return seg, fmt.Errorf("field %q is not a string", "text")
	}
	if seg.Text == "" {
		return seg, fmt.Errorf("field %q is empty", "text")
	}
	return seg, nil
}

func requireNumber(obj map[string]json.RawMessage, field string, dst *float64) error {
	raw, ok := obj[field]
	if !ok {
		return fmt.Errorf("missing field %q", field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q is not a number", field)
	}
	return nil
}

func isQuotaStatus(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return bytes.Contains(body, []byte("RESOURCE_EXHAUSTED"))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
