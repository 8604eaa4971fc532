// Package safebrowsing screens target URLs against the Google Safe
// Browsing v4 API before they are persisted.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

type Checker struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewChecker(apiKey string, client *http.Client) *Checker {
	if client == nil {
		client = http.DefaultClient
	}

	return &Checker{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   client,
	}
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type findResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

// IsSafe reports whether the Safe Browsing API knows no threat matches
// for the given URL.
func (c *Checker) IsSafe(ctx context.Context, url string) (bool, error) {
	const op = "safebrowsing.Checker.IsSafe"

	reqBody := findRequest{
		Client: clientInfo{
			ClientID:      "shortly",
			ClientVersion: "1.0.0",
		},
		ThreatInfo: threatInfo{
			ThreatTypes:      []string{"MALWARE", "SOCIAL_ENGINEERING"},
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: url}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return false, fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var result findResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return len(result.Matches) == 0, nil
}
