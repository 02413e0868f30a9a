// Package geo resolves free-text store locations to coordinates for the
// spending map, with a fixed fallback when lookup fails.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Seoul city hall, used whenever a location cannot be resolved.
const (
	FallbackLat = 37.5665
	FallbackLon = 126.9780
)

// Point is a resolved coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder queries a Nominatim-compatible search endpoint.
type Geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewGeocoder(baseURL, userAgent string) *Geocoder {
	return &Geocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Locate resolves a free-text location. It never fails: blank input, a
// transport error, or an empty result all yield the fallback point.
func (g *Geocoder) Locate(ctx context.Context, query string) Point {
	fallback := Point{Lat: FallbackLat, Lon: FallbackLon}

	query = strings.TrimSpace(query)
	if query == "" || g.baseURL == "" {
		return fallback
	}

	p, err := g.search(ctx, query)
	if err != nil {
		return fallback
	}
	return p
}

func (g *Geocoder) search(ctx context.Context, query string) (Point, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Point{}, fmt.Errorf("create request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}

	// Nominatim returns coordinates as strings.
	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, fmt.Errorf("no results for %q", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse lon: %w", err)
	}

	return Point{Lat: lat, Lon: lon}, nil
}
