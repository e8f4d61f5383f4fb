// Package dataset holds the civic data served by `civicmap serve`: the
// import payload, the statistics derived from it and the SQLite store.
package dataset

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// Metadata describes how a payload was produced.
type Metadata struct {
	UrbanicitySource string `json:"urbanicity_source"`
	CountyCount      int    `json:"county_count"`
	StateCount       int    `json:"state_count"`
}

// Payload is the civic_quest_data.json document.
type Payload struct {
	Metadata Metadata             `json:"metadata"`
	States   []model.StateSummary `json:"states"`
	Counties []model.Entity       `json:"counties"`
}

// ReadPayload decodes a payload and normalizes county ids.
func ReadPayload(r io.Reader) (*Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	kept := p.Counties[:0]
	for _, c := range p.Counties {
		c.ID = model.NormalizeID(c.ID)
		if c.ID == "" {
			continue
		}
		c.Kind = model.KindCounty
		kept = append(kept, c)
	}
	p.Counties = kept
	return &p, nil
}

// ReadPayloadFile opens and decodes path.
func ReadPayloadFile(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPayload(f)
}
