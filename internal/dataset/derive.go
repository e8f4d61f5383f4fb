package dataset

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// MaxPeers is how many peers each county gets.
const MaxPeers = 5

// Tertile cut points used when no urbanicity label is available.
const (
	ruralQuantile    = 0.33
	suburbanQuantile = 0.67
)

// Derive fills in everything a payload may omit: urbanicity labels, ranks,
// percentiles, peers and the per-state summaries. Values already present
// in the payload are kept.
func Derive(p *Payload) {
	counties := p.Counties
	if classifyMissing(counties) {
		p.Metadata.UrbanicitySource = "Population tertiles (fallback)"
	}
	rankCounties(counties)
	assignPeers(counties)
	if len(p.States) == 0 {
		p.States = Summaries(counties)
	}
	p.Metadata.CountyCount = len(counties)
	p.Metadata.StateCount = len(p.States)
}

// classifyMissing labels counties without urbanicity by population tertile.
// It reports whether any county needed a label.
func classifyMissing(counties []model.Entity) bool {
	missing := false
	pops := make([]float64, 0, len(counties))
	for _, c := range counties {
		pops = append(pops, float64(c.Population))
		if c.Urbanicity == "" {
			missing = true
		}
	}
	if !missing || len(pops) == 0 {
		return false
	}
	sort.Float64s(pops)
	q1 := stat.Quantile(ruralQuantile, stat.Empirical, pops, nil)
	q2 := stat.Quantile(suburbanQuantile, stat.Empirical, pops, nil)
	for i := range counties {
		if counties[i].Urbanicity != "" {
			continue
		}
		switch pop := float64(counties[i].Population); {
		case pop <= q1:
			counties[i].Urbanicity = model.Rural
		case pop <= q2:
			counties[i].Urbanicity = model.Suburban
		default:
			counties[i].Urbanicity = model.Urban
		}
	}
	return true
}

// rankCounties sets national and state ranks (highest score first, ties
// share the lowest rank) and the national percentile.
func rankCounties(counties []model.Entity) {
	all := make([]int, len(counties))
	byState := map[string][]int{}
	for i := range counties {
		all[i] = i
		st := strings.ToUpper(counties[i].ParentRegion)
		byState[st] = append(byState[st], i)
	}

	for i, r := range minRanks(counties, all) {
		if counties[i].NationalRank == 0 {
			counties[i].NationalRank = r
		}
	}
	for _, idx := range byState {
		for i, r := range minRanks(counties, idx) {
			if counties[i].StateRank == 0 {
				counties[i].StateRank = r
			}
		}
	}

	pct := percentiles(counties)
	for i := range counties {
		if counties[i].NationalPercentile == 0 {
			counties[i].NationalPercentile = pct[i]
		}
	}
}

// minRanks ranks idx by descending score; tied scores share the best rank.
func minRanks(counties []model.Entity, idx []int) map[int]int {
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(a, b int) bool {
		return counties[order[a]].Score > counties[order[b]].Score
	})
	ranks := make(map[int]int, len(order))
	for pos, i := range order {
		if pos > 0 && counties[order[pos-1]].Score == counties[i].Score {
			ranks[i] = ranks[order[pos-1]]
			continue
		}
		ranks[i] = pos + 1
	}
	return ranks
}

// percentiles is the share of counties scoring at or below each county,
// with ties averaged, scaled to 0-100 and rounded to one decimal.
func percentiles(counties []model.Entity) []float64 {
	n := len(counties)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	scores := make([]float64, n)
	for i, c := range counties {
		scores[i] = c.Score
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	for i, s := range scores {
		lo := sort.SearchFloat64s(sorted, s)
		hi := sort.Search(n, func(k int) bool { return sorted[k] > s })
		avgRank := float64(lo+1+hi) / 2
		out[i] = math.Round(avgRank/float64(n)*1000) / 10
	}
	return out
}

// assignPeers gives each county without peers the MaxPeers counties of
// the same state and urbanicity whose scores are closest to its own.
func assignPeers(counties []model.Entity) {
	groups := map[string][]int{}
	for i, c := range counties {
		key := strings.ToUpper(c.ParentRegion) + "/" + string(c.Urbanicity)
		groups[key] = append(groups[key], i)
	}
	for _, idx := range groups {
		for _, i := range idx {
			if len(counties[i].Peers) > 0 {
				continue
			}
			others := make([]int, 0, len(idx)-1)
			for _, j := range idx {
				if j != i {
					others = append(others, j)
				}
			}
			self := counties[i].Score
			sort.SliceStable(others, func(a, b int) bool {
				return math.Abs(counties[others[a]].Score-self) < math.Abs(counties[others[b]].Score-self)
			})
			if len(others) > MaxPeers {
				others = others[:MaxPeers]
			}
			peers := make([]model.PeerSummary, 0, len(others))
			for _, j := range others {
				c := counties[j]
				peers = append(peers, model.PeerSummary{
					ID:         c.ID,
					Name:       c.Name,
					State:      c.ParentRegion,
					Score:      model.Round2(c.Score),
					Urbanicity: c.Urbanicity,
				})
			}
			counties[i].Peers = peers
		}
	}
}

// Summaries aggregates counties per state, sorted by state code.
func Summaries(counties []model.Entity) []model.StateSummary {
	byState := map[string][]*model.Entity{}
	for i := range counties {
		st := strings.ToUpper(counties[i].ParentRegion)
		if st == "" {
			continue
		}
		byState[st] = append(byState[st], &counties[i])
	}

	out := make([]model.StateSummary, 0, len(byState))
	for st, group := range byState {
		sum := model.StateSummary{State: st, CountyCount: len(group)}
		all := make([]float64, 0, len(group))
		byClass := map[model.Urbanicity][]float64{}
		top := group[0]
		for _, c := range group {
			all = append(all, c.Score)
			byClass[c.Urbanicity] = append(byClass[c.Urbanicity], c.Score)
			if c.Score > top.Score {
				top = c
			}
		}
		sum.AvgScore = model.Round2(stat.Mean(all, nil))
		sum.UrbanAvg = classMean(byClass[model.Urban])
		sum.SuburbanAvg = classMean(byClass[model.Suburban])
		sum.RuralAvg = classMean(byClass[model.Rural])
		sum.UrbanCount = len(byClass[model.Urban])
		sum.SuburbanCount = len(byClass[model.Suburban])
		sum.RuralCount = len(byClass[model.Rural])
		sum.TopCounty = top.Name
		sum.TopCountyScore = model.Round2(top.Score)
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

func classMean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return model.Round2(stat.Mean(scores, nil))
}
