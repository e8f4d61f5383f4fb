// Package model defines the entities exchanged between the civic data
// service, the comparison engine and the quest flow.
package model

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Kind distinguishes county records from state aggregates.
type Kind string

const (
	KindCounty Kind = "county"
	KindState  Kind = "state"
)

// Urbanicity is the urban/suburban/rural class of a county.
type Urbanicity string

const (
	Urban    Urbanicity = "Urban"
	Suburban Urbanicity = "Suburban"
	Rural    Urbanicity = "Rural"
)

// ParseUrbanicity accepts any casing and returns "" for unknown labels.
func ParseUrbanicity(s string) Urbanicity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urban":
		return Urban
	case "suburban":
		return Suburban
	case "rural":
		return Rural
	default:
		return ""
	}
}

// UnmarshalJSON normalizes casing; unknown labels decode to "".
func (u *Urbanicity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*u = ParseUrbanicity(s)
	return nil
}

// OrgType is one civic organization class and how many exist in a county.
type OrgType struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// PeerSummary is a county with a similar score in the same state and class.
type PeerSummary struct {
	ID         string     `json:"fips"`
	Name       string     `json:"name"`
	State      string     `json:"state"`
	Score      float64    `json:"score"`
	Urbanicity Urbanicity `json:"urbanicity"`
}

// Entity is a county or a state. Entities are immutable once fetched.
type Entity struct {
	ID                 string             `json:"fips"`
	Kind               Kind               `json:"kind,omitempty"`
	Name               string             `json:"name"`
	ParentRegion       string             `json:"state"`
	Population         int                `json:"population"`
	Urbanicity         Urbanicity         `json:"urbanicity"`
	Score              float64            `json:"score"`
	NationalPercentile float64            `json:"national_percentile"`
	NationalRank       int                `json:"national_rank"`
	StateRank          int                `json:"state_rank"`
	Metrics            map[string]float64 `json:"metrics"`
	OrgTypes           []OrgType          `json:"org_types"`
	Peers              []PeerSummary      `json:"peers"`
	Lat                *float64           `json:"lat,omitempty"`
	Lon                *float64           `json:"lon,omitempty"`
	Summary            *StateSummary      `json:"summary,omitempty"`
}

// Display returns "Name, ST" for counties and the state code for states.
func (e *Entity) Display() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindState {
		if e.Name != "" {
			return e.Name
		}
		return e.ID
	}
	if e.Name == "" {
		return e.ID
	}
	if e.ParentRegion == "" {
		return e.Name
	}
	return e.Name + ", " + e.ParentRegion
}

// HasPeers reports whether the entity carries at least one peer county.
func (e *Entity) HasPeers() bool {
	return e != nil && len(e.Peers) > 0
}

// EntitySummary is a search hit.
type EntitySummary struct {
	ID         string     `json:"fips"`
	Display    string     `json:"display"`
	Population int        `json:"population"`
	Urbanicity Urbanicity `json:"urbanicity,omitempty"`
}

// UnmarshalJSON accepts the identifier under either "fips" or "id".
func (s *EntitySummary) UnmarshalJSON(b []byte) error {
	var raw struct {
		FIPS       string     `json:"fips"`
		ID         string     `json:"id"`
		Display    string     `json:"display"`
		Population int        `json:"population"`
		Urbanicity Urbanicity `json:"urbanicity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.ID = raw.FIPS
	if s.ID == "" {
		s.ID = raw.ID
	}
	s.Display = raw.Display
	if s.Display == "" {
		s.Display = s.ID
	}
	s.Population = raw.Population
	s.Urbanicity = raw.Urbanicity
	return nil
}

// StateSummary aggregates the counties of one state.
type StateSummary struct {
	State          string  `json:"state"`
	AvgScore       float64 `json:"avg_score"`
	CountyCount    int     `json:"county_count"`
	TopCounty      string  `json:"top_county"`
	TopCountyScore float64 `json:"top_county_score"`
	UrbanAvg       float64 `json:"urban_avg"`
	SuburbanAvg    float64 `json:"suburban_avg"`
	RuralAvg       float64 `json:"rural_avg"`
	UrbanCount     int     `json:"urban_count"`
	SuburbanCount  int     `json:"suburban_count"`
	RuralCount     int     `json:"rural_count"`
}

// StateEntity wraps a state summary in an Entity so it can be bound to a slot.
func StateEntity(s StateSummary) *Entity {
	sum := s
	return &Entity{
		ID:           strings.ToUpper(s.State),
		Kind:         KindState,
		Name:         strings.ToUpper(s.State),
		ParentRegion: strings.ToUpper(s.State),
		Score:        s.AvgScore,
		Metrics: map[string]float64{
			"avg_score":    s.AvgScore,
			"urban_avg":    s.UrbanAvg,
			"suburban_avg": s.SuburbanAvg,
			"rural_avg":    s.RuralAvg,
		},
		Summary: &sum,
	}
}

// StateGaps is the difference A minus B between two state summaries.
type StateGaps struct {
	UrbanGap    float64 `json:"urban_gap"`
	SuburbanGap float64 `json:"suburban_gap"`
	RuralGap    float64 `json:"rural_gap"`
	AvgScoreGap float64 `json:"avg_score_gap"`
}

// Gaps computes A minus B, rounded to two decimals.
func Gaps(a, b StateSummary) StateGaps {
	return StateGaps{
		UrbanGap:    Round2(a.UrbanAvg - b.UrbanAvg),
		SuburbanGap: Round2(a.SuburbanAvg - b.SuburbanAvg),
		RuralGap:    Round2(a.RuralAvg - b.RuralAvg),
		AvgScoreGap: Round2(a.AvgScore - b.AvgScore),
	}
}
