// Package lasoo turns lasoo.co.nz store locator payloads into store records.
package lasoo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/google/uuid"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
)

// PropertyLasooID is the store property carrying the site's own store id.
const PropertyLasooID = "lasoo_id"

// StoreRecord is one outlet from a store locator map.
type StoreRecord struct {
	LasooID     string
	Name        string
	DisplayName string
	Latitude    float64
	Longitude   float64
}

type rawStore struct {
	ID          json.Number `json:"id"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	DisplayName string      `json:"displayName"`
}

// The locator script uses bare keys: {id:1,latitude:-43.5,...}.
var bareKey = regexp.MustCompile(`([{,]\s*)(id|latitude|longitude|displayName)\s*:`)

var stripControl = strings.NewReplacer("\t", "", "\n", "", "\r", "")

// ParseStoreList accepts the locator list either as JSON or as a JS object
// literal with unquoted keys.
func ParseStoreList(js string) ([]StoreRecord, error) {
	body := stripControl.Replace(js)
	body = strings.ReplaceAll(body, `'"`, `"`)
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty store list")
	}
	if !strings.Contains(body, `"id"`) {
		body = bareKey.ReplaceAllString(body, `$1"$2":`)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var raw []rawStore
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode store list: %w", err)
	}

	out := make([]StoreRecord, 0, len(raw))
	for i, s := range raw {
		display := NormalizeDisplayName(s.DisplayName)
		if display == "" {
			return nil, fmt.Errorf("store %d has no display name", i)
		}
		out = append(out, StoreRecord{
			LasooID:     s.ID.String(),
			Name:        types.NormalizeName(display),
			DisplayName: display,
			Latitude:    s.Latitude,
			Longitude:   s.Longitude,
		})
	}
	return out, nil
}

// NormalizeDisplayName turns "All Power -- Edgeware Mowers &amp; Co'" into
// "All Power - Edgeware Mowers & Co".
func NormalizeDisplayName(raw string) string {
	name := strings.ReplaceAll(raw, " -- ", " - ")
	name = html.UnescapeString(name)
	return strings.TrimSpace(strings.Trim(name, `'"`))
}

func NormalizeAddress(raw string) string {
	return strings.TrimSpace(stripControl.Replace(raw))
}

func (r StoreRecord) Candidate() domainagg.StoreCandidate {
	lat, lng := r.Latitude, r.Longitude
	return domainagg.StoreCandidate{
		Name:      r.DisplayName,
		Latitude:  &lat,
		Longitude: &lng,
	}
}

// Store returns the record as an unsaved store of retailerID, ready for
// membership reconciliation.
func (r StoreRecord) Store(retailerID uuid.UUID) *types.Store {
	lat, lng := r.Latitude, r.Longitude
	return &types.Store{
		RetailerID:  retailerID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Latitude:    &lat,
		Longitude:   &lng,
	}
}

func (r StoreRecord) Properties() []*types.StoreProperty {
	if r.LasooID == "" {
		return []*types.StoreProperty{}
	}
	return []*types.StoreProperty{{Name: PropertyLasooID, Value: r.LasooID}}
}
