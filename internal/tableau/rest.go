package tableau

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultAPIVersion is the REST API version the client speaks. Tableau
// keeps old versions callable, so a fixed floor is safe.
const defaultAPIVersion = "3.21"

// restClient is the HTTP transport shared by the authenticator and client.
// It speaks the JSON dialect of the REST API.
type restClient struct {
	serverURL  string
	apiVersion string
	httpClient *http.Client
}

func newRESTClient(serverURL string, timeout time.Duration) *restClient {
	return &restClient{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiVersion: defaultAPIVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError is the error envelope the REST API returns on non-2xx status.
type apiError struct {
	Error struct {
		Summary string `json:"summary"`
		Detail  string `json:"detail"`
		Code    string `json:"code"`
	} `json:"error"`
}

// do issues one request against /api/{version}/{path}. A non-empty token is
// sent as X-Tableau-Auth. body and out may be nil.
func (r *restClient) do(ctx context.Context, method, path, token string, body, out any) error {
	url := fmt.Sprintf("%s/api/%s/%s", r.serverURL, r.apiVersion, strings.TrimLeft(path, "/"))

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Tableau-Auth", token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(data, &ae) == nil && ae.Error.Summary != "" {
			return fmt.Errorf("%s (%s): %s", ae.Error.Summary, ae.Error.Code, ae.Error.Detail)
		}
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
