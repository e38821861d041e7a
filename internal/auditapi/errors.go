package auditapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxBodyExcerpt bounds the response text quoted in a ResponseShapeError.
const maxBodyExcerpt = 200

// APIError is a non-2xx response from the audit API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

// ResponseShapeError is returned when a response is not the JSON document the
// endpoint promises.
type ResponseShapeError struct {
	Endpoint    string
	ContentType string
	Body        string
	Reason      string
}

func (e *ResponseShapeError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("server returned non-JSON response. Content-Type: %s. Response: %s...", e.ContentType, e.Body)
}

func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt])
	}
	return string(body)
}

// parseError builds an APIError from the FastAPI style {"detail": ...} body,
// falling back to "<prefix>: <status text>".
func parseError(endpoint, prefix string, resp *http.Response, body []byte) error {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := ""
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Detail) > 0 {
		var text string
		if err := json.Unmarshal(errResp.Detail, &text); err == nil {
			detail = text
		} else if string(errResp.Detail) != "null" {
			detail = string(errResp.Detail)
		}
	}
	if detail == "" {
		detail = fmt.Sprintf("%s: %s", prefix, statusText(resp))
	}
	return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Detail: detail}
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
