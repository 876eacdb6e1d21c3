// Package wiki grounds identified subjects with real Wikipedia data:
// a summary extract for the prompt context and coordinates for
// recomputing nearby distances. Everything here is best-effort; a
// failed lookup never blocks the discovery flow.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/uber/h3-go/v4"

	"github.com/NagiElgarhi/view-tours/pkg/articleproc"
	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/discovery"
	"github.com/NagiElgarhi/view-tours/pkg/geo"
	"github.com/NagiElgarhi/view-tours/pkg/model"
	"github.com/NagiElgarhi/view-tours/pkg/request"
)

// cellResolution is the H3 resolution used to collapse geosearch hits
// that describe the same place (res 9 cells are ~170m across).
const cellResolution = 9

// Client fetches Wikipedia summaries and geosearch results.
type Client struct {
	request *request.Client
	cfg     config.WikiConfig

	// Optional overrides for testing.
	RESTEndpoint string // replaces https://{lang}.wikipedia.org/api/rest_v1
	APIEndpoint  string // replaces https://{lang}.wikipedia.org/w/api.php
}

// NewClient creates a grounding client on top of the shared request client.
func NewClient(r *request.Client, cfg config.WikiConfig) *Client {
	return &Client{request: r, cfg: cfg}
}

var _ discovery.Grounder = (*Client)(nil)

// summary is the subset of the REST page summary we care about.
type summary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ExtractHTML string `json:"extract_html"`
	Coordinates *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
}

// Subject fetches the page summary for a confirmed title. Returns
// (nil, nil) when Wikipedia has no usable page for it, e.g. a
// disambiguation page.
func (c *Client) Subject(ctx context.Context, title, locale string) (*discovery.Grounding, error) {
	lang := c.language(locale)

	endpoint := c.RESTEndpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/api/rest_v1", lang)
	}
	u := endpoint + "/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	cacheKey := fmt.Sprintf("wiki_summary_%s_%s", lang, title)

	body, err := c.request.Get(ctx, u, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("summary fetch for %q: %w", title, err)
	}

	var s summary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("summary decode for %q: %w", title, err)
	}
	if s.Type == "disambiguation" {
		slog.Debug("Wikipedia title is ambiguous, skipping grounding", "title", title)
		return nil, nil
	}

	g := &discovery.Grounding{Extract: c.extractProse(&s)}
	if s.Coordinates != nil {
		g.Lat = s.Coordinates.Lat
		g.Lon = s.Coordinates.Lon
		g.HasCoords = true
	}
	return g, nil
}

// extractProse prefers the cleaned HTML extract (citations and markup
// stripped) and falls back to the plain-text one.
func (c *Client) extractProse(s *summary) string {
	if s.ExtractHTML != "" {
		info, err := articleproc.ExtractProse(strings.NewReader(s.ExtractHTML))
		if err == nil && info.IsReliable {
			return info.Prose
		}
	}
	return s.Extract
}

// geoHit is one geosearch result.
type geoHit struct {
	PageID int     `json:"pageid"`
	Title  string  `json:"title"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Dist   float64 `json:"dist"` // meters from the search origin
}

// Nearby locates entries around the origin via geosearch and recomputes
// their distance and direction from real coordinates. Entries without a
// matching page pass through unchanged.
func (c *Client) Nearby(ctx context.Context, lat, lon float64, entries []model.NearbyLandmark) []model.NearbyLandmark {
	if len(entries) == 0 {
		return entries
	}

	hits, err := c.geosearch(ctx, lat, lon)
	if err != nil {
		slog.Warn("Geosearch failed, keeping model-provided distances", "error", err)
		return entries
	}
	hits = dedupeByCell(hits)

	byTitle := make(map[string]geoHit, len(hits))
	for _, h := range hits {
		byTitle[normalizeTitle(h.Title)] = h
	}

	origin := geo.Point{Lat: lat, Lon: lon}
	out := make([]model.NearbyLandmark, len(entries))
	for i, e := range entries {
		out[i] = e
		h, ok := byTitle[normalizeTitle(e.Name)]
		if !ok {
			continue
		}
		p := geo.Point{Lat: h.Lat, Lon: h.Lon}
		out[i].Lat = h.Lat
		out[i].Lon = h.Lon
		out[i].Distance = math.Round(geo.Distance(origin, p)/100) / 10 // km, one decimal
		out[i].Direction = geo.CardinalBetween(origin, p)
	}
	return out
}

func (c *Client) geosearch(ctx context.Context, lat, lon float64) ([]geoHit, error) {
	lang := c.language("")
	endpoint := c.APIEndpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}

	radius := int(c.cfg.SearchRadius)
	if radius <= 0 {
		radius = 10000
	}
	limit := c.cfg.GeosearchLimit
	if limit <= 0 {
		limit = 25
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Add("action", "query")
	q.Add("list", "geosearch")
	q.Add("gscoord", fmt.Sprintf("%f|%f", lat, lon))
	q.Add("gsradius", fmt.Sprintf("%d", radius))
	q.Add("gslimit", fmt.Sprintf("%d", limit))
	q.Add("format", "json")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), c.geoCacheKey(lat, lon, radius))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			Geosearch []geoHit `json:"geosearch"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("geosearch decode: %w", err)
	}
	return resp.Query.Geosearch, nil
}

// geoCacheKey keys cached geosearch responses by the origin's H3 cell,
// so nearby origins share one cached result.
func (c *Client) geoCacheKey(lat, lon float64, radius int) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), cellResolution)
	if err != nil {
		return fmt.Sprintf("wiki_geo_%.4f_%.4f_%d", lat, lon, radius)
	}
	return fmt.Sprintf("wiki_geo_%s_%d", cell.String(), radius)
}

// dedupeByCell collapses hits that fall inside the same H3 cell,
// keeping the first (geosearch orders by distance, so the closest
// survives).
func dedupeByCell(hits []geoHit) []geoHit {
	seen := make(map[h3.Cell]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		cell, err := h3.LatLngToCell(h3.NewLatLng(h.Lat, h.Lon), cellResolution)
		if err != nil {
			out = append(out, h)
			continue
		}
		if seen[cell] {
			continue
		}
		seen[cell] = true
		out = append(out, h)
	}
	return out
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// language picks the wiki language: the locale's language tag when one
// was passed, then the configured default, then English.
func (c *Client) language(locale string) string {
	if locale != "" {
		if i := strings.IndexByte(locale, '-'); i > 0 {
			return strings.ToLower(locale[:i])
		}
		return strings.ToLower(locale)
	}
	if c.cfg.Language != "" {
		return c.cfg.Language
	}
	return "en"
}
