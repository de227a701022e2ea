package crawl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
)

// Observation is one deal as a spider saw it. A missing stores or properties
// list means the page did not show one; an empty list means it showed none.
type Observation struct {
	Retailer           domainagg.RetailerCandidate `json:"retailer"`
	RetailerProperties []*types.RetailerProperty   `json:"retailer_properties,omitempty"`
	Product            domainagg.ProductCandidate  `json:"product"`
	ImageURL           string                      `json:"image_url,omitempty"`
	Stores             []*types.Store              `json:"stores"`
	Properties         []*types.ProductProperty    `json:"properties"`

	// StoreList is set on retailer store locator pages. Such an observation
	// carries no deal.
	StoreList *StoreListObservation `json:"store_list,omitempty"`
}

// StoreListObservation is a raw lasoo store locator list plus the addresses
// scraped from the listing table, keyed by lasoo store id.
type StoreListObservation struct {
	Script    string            `json:"script"`
	Addresses map[string]string `json:"addresses,omitempty"`
	// Region files every listed store under one region, e.g. "all new zealand"
	// for nationwide locators.
	Region string `json:"region,omitempty"`
}

const maxObservationLine = 4 << 20

// ReadObservations decodes one JSON observation per line. Blank lines are
// skipped.
func ReadObservations(r io.Reader) ([]Observation, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxObservationLine)
	var out []Observation
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var obs Observation
		if err := json.Unmarshal([]byte(text), &obs); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, obs)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return out, nil
}
