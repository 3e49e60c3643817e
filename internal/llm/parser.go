package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mfairbanks/jobsignal/internal/common"
)

// cleanMarkdownWrapper strips markdown code fences that models sometimes wrap
// around JSON despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSpace(content)
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(content, "`"))
}

// parseSelection decodes the strict selection contract:
//
//	{"job_id": "...", "confident": true, "reasoning": "..."}
//
// An empty job_id is only valid together with confident=false ("none
// confident"). Anything undecodable fails with common.ErrMalformedResponse.
func parseSelection(content string) (SelectionResponse, error) {
	var jsonResp struct {
		JobID     string `json:"job_id"`
		Reasoning string `json:"reasoning"`
		Confident bool   `json:"confident"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return SelectionResponse{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	if jsonResp.JobID == "" && jsonResp.Confident {
		return SelectionResponse{}, fmt.Errorf("%w: confident selection with no job id", common.ErrMalformedResponse)
	}

	return SelectionResponse{
		JobID:     strings.TrimSpace(jsonResp.JobID),
		Reasoning: strings.TrimSpace(jsonResp.Reasoning),
		Confident: jsonResp.Confident,
	}, nil
}
