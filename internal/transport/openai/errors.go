package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with the given sentinel for correct 502 mapping;
// HTTP 429 additionally wraps domain.ErrRateLimited.
func parseAPIError(err error, sentinel error) error {
	wrap := sentinel

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			wrap = fmt.Errorf("%w: %w", domain.ErrRateLimited, sentinel)
		}
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("provider API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("provider API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			wrap = fmt.Errorf("%w: %w", domain.ErrRateLimited, sentinel)
		}
		return fmt.Errorf("provider API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("provider request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body
// (the error format of some OpenAI-compatible gateways).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
