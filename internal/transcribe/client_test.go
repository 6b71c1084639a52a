package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchscribe/internal/audio"
	"batchscribe/internal/model"
	"batchscribe/internal/plan"
)

type latencyCapture struct {
	mu       sync.Mutex
	observed map[string]int
}

func (l *latencyCapture) ObserveLatency(modelID string, latency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.observed == nil {
		l.observed = make(map[string]int)
	}
	l.observed[modelID]++
}

func testPayload() *audio.Payload {
	return &audio.Payload{
		Data:      audio.EncodeWAV([]int16{0, 1, 2}, 16000),
		MediaType: "audio/wav",
		Window:    plan.TimeWindow{Start: 0, End: 300},
	}
}

func testProfile() model.Profile {
	return model.Profile{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", Instruction: "transcribe"}
}

func envelope(inner string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, inner)
}

func newTestClient(handler http.HandlerFunc) (*Client, *latencyCapture, *httptest.Server) {
	server := httptest.NewServer(handler)
	capture := &latencyCapture{}
	client := NewClient(server.URL, "test-key", 5*time.Second, capture)
	return client, capture, server
}

func TestTranscribe_Success(t *testing.T) {
	var gotPath, gotKey string
	client, capture, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, envelope(`[{"start":0,"end":2.5,"text":"hello"},{"start":2.5,"end":4,"text":"world"}]`))
	})
	defer server.Close()

	segments, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{Start: 0, End: 2.5, Text: "hello"}, segments[0])
	assert.Equal(t, Segment{Start: 2.5, End: 4, Text: "world"}, segments[1])

	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, 1, capture.observed["gemini-2.5-flash"])
}

func TestTranscribe_EmptyArrayIsLegal(t *testing.T) {
	client, _, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`[]`))
	})
	defer server.Close()

	segments, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestTranscribe_QuotaStatus(t *testing.T) {
	client, capture, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.Error(t, err)
	assert.Equal(t, CategoryQuota, ClassifyError(err))
	// Latency is observed even for failed attempts.
	assert.Equal(t, 1, capture.observed["gemini-2.5-flash"])
}

func TestTranscribe_QuotaInBody(t *testing.T) {
	client, _, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`)
	})
	defer server.Close()

	_, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.Error(t, err)
	assert.Equal(t, CategoryQuota, ClassifyError(err))
}

func TestTranscribe_ServerErrorIsTransient(t *testing.T) {
	client, _, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.Error(t, err)
	assert.Equal(t, CategoryTransient, ClassifyError(err))
}

func TestTranscribe_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // connection refused from here on
	client := NewClient(server.URL, "k", time.Second, nil)

	_, err := client.Transcribe(context.Background(), testPayload(), testProfile())
	require.Error(t, err)
	assert.Equal(t, CategoryTransient, ClassifyError(err))
}

func TestTranscribe_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", envelope(`not json at all`)},
		{"object not array", envelope(`{"start":0}`)},
		{"missing start", envelope(`[{"end":1,"text":"x"}]`)},
		{"missing end", envelope(`[{"start":0,"text":"x"}]`)},
		{"missing text", envelope(`[{"start":0,"end":1}]`)},
		{"string start", envelope(`[{"start":"0","end":1,"text":"x"}]`)},
		{"numeric text", envelope(`[{"start":0,"end":1,"text":42}]`)},
		{"empty text", envelope(`[{"start":0,"end":1,"text":""}]`)},
		{"no candidates", `{"candidates":[]}`},
		{"bad envelope", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			defer server.Close()

			_, err := client.Transcribe(context.Background(), testPayload(), testProfile())
			require.Error(t, err)
			assert.Equal(t, CategoryMalformed, ClassifyError(err))
		})
	}
}

func TestClassifyError_UnclassifiedDefaultsToTransient(t *testing.T) {
	assert.Equal(t, CategoryTransient, ClassifyError(fmt.Errorf("plain error")))
}
