package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ReverseGeocoder turns a coordinate pair into a display address. The
// geocoding provider is an external collaborator; implementations must treat
// it as unreliable and bound every call with the caller's context.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// HTTPGeocoder calls a Nominatim-compatible reverse endpoint
// (GET {baseURL}/reverse?lat=..&lon=..&format=jsonv2).
type HTTPGeocoder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGeocoder builds a geocoder against the given base URL. A nil client
// falls back to a client with a conservative timeout.
func NewHTTPGeocoder(baseURL string, client *http.Client) *HTTPGeocoder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGeocoder{baseURL: baseURL, client: client}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build reverse geocode request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reverse geocode response: %w", err)
	}

	if body.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode returned no address for %f,%f", lat, lng)
	}

	return body.DisplayName, nil
}
