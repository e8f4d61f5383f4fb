//go:build ignore
// +build ignore

// generate_testdata.go creates synthetic civic datasets for benchmarking
// import, search and the map canvas.
// Usage: go run scripts/generate_testdata.go
//
// Creates, for each size, a payload and matching square county polygons:
//   tests/testdata/civic/small.json    small.geojson    (100 counties)
//   tests/testdata/civic/medium.json   medium.geojson   (1000 counties)
//   tests/testdata/civic/large.json    large.geojson    (3200 counties)
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/vanderheijden86/civicmap/internal/dataset"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

type datasetSpec struct {
	name string
	size int
	desc string
}

var datasets = []datasetSpec{
	{"small", 100, "100 counties in 5 states"},
	{"medium", 1000, "1000 counties in 25 states"},
	{"large", 3200, "3200 counties in 50 states, about the real size"},
}

var states = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

var metricNames = []string{"membership", "volunteer", "voting", "nonprofits_per_1k"}

var orgClasses = []string{"Arts", "Civic", "Education", "Health", "Religious", "Sports"}

func main() {
	outputDir := "tests/testdata/civic"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%s)...\n", ds.name, ds.desc)

		rng := rand.New(rand.NewSource(int64(ds.size))) // Reproducible per-size
		payload, fc := generate(rng, ds.size)

		// Fill ranks, peers and state summaries the way `civicmap import` does.
		dataset.Derive(payload)

		for ext, v := range map[string]any{".json": payload, ".geojson": fc} {
			data, err := json.Marshal(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode %s%s: %v\n", ds.name, ext, err)
				os.Exit(1)
			}
			outputPath := filepath.Join(outputDir, ds.name+ext)
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
				os.Exit(1)
			}
			fmt.Printf("  Written %s (%d bytes)\n", outputPath, len(data))
		}
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

// generate lays counties out on a grid of one-degree squares, one state per
// block of 64, so every county has a polygon and neighbours share edges.
func generate(rng *rand.Rand, size int) (*dataset.Payload, *geojson.FeatureCollection) {
	perState := 64
	p := &dataset.Payload{Metadata: dataset.Metadata{UrbanicitySource: "synthetic"}}
	fc := geojson.NewFeatureCollection()

	for i := 0; i < size; i++ {
		si := (i / perState) % len(states)
		stateFIPS := si*2 + 1
		countyFIPS := (i%perState)*2 + 1
		id := fmt.Sprintf("%02d%03d", stateFIPS, countyFIPS)

		pop := int(1000 * (1 + rng.ExpFloat64()*40))
		c := model.Entity{
			ID:           id,
			Kind:         model.KindCounty,
			Name:         fmt.Sprintf("County %d", i+1),
			ParentRegion: states[si],
			Population:   pop,
			Urbanicity:   urbanicityFor(pop),
			Score:        model.Round2(20 + rng.Float64()*70),
			Metrics:      make(map[string]float64, len(metricNames)),
		}
		for _, m := range metricNames {
			c.Metrics[m] = model.Round2(rng.Float64() * 100)
		}
		for _, class := range orgClasses {
			if n := rng.Intn(60); n > 0 {
				c.OrgTypes = append(c.OrgTypes, model.OrgType{Class: class, Count: n})
			}
		}

		lon := -125 + float64((i%perState)%8) + float64(si%10)*8
		lat := 25 + float64((i%perState)/8) + float64(si/10)*8
		clat, clon := lat+0.5, lon+0.5
		c.Lat, c.Lon = &clat, &clon
		p.Counties = append(p.Counties, c)

		f := geojson.NewFeature(orb.Polygon{{
			{lon, lat}, {lon + 1, lat}, {lon + 1, lat + 1}, {lon, lat + 1}, {lon, lat},
		}})
		// Half of the ids are numeric without the leading zero.
		if i%2 == 0 {
			f.Properties["GEOID"] = stateFIPS*1000 + countyFIPS
		} else {
			f.Properties["geoid"] = id
		}
		f.Properties["NAME"] = c.Name
		fc.Append(f)
	}
	return p, fc
}

func urbanicityFor(pop int) model.Urbanicity {
	switch {
	case pop >= 50000:
		return model.Urban
	case pop >= 15000:
		return model.Suburban
	default:
		return model.Rural
	}
}
