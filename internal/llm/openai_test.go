package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfairbanks/jobsignal/internal/common"
)

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := newOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return client
}

func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestOpenAIClientSelectCandidate(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		_, _ = w.Write([]byte(completionBody(`{"job_id": "job-1", "confident": true, "reasoning": "exact domain"}`)))
	})

	resp, err := client.SelectCandidate(context.Background(), "pick one")
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
	assert.True(t, resp.Confident)
	assert.Equal(t, "exact domain", resp.Reasoning)
}

func TestOpenAIClientRateLimited(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.SelectCandidate(context.Background(), "pick one")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRateLimited)
}

func TestOpenAIClientMalformedContent(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody("I think job-1 is the best match.")))
	})

	_, err := client.SelectCandidate(context.Background(), "pick one")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.SelectCandidate(context.Background(), "pick one")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestOpenAIClientRequiresAPIKey(t *testing.T) {
	_, err := newOpenAIClient(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
