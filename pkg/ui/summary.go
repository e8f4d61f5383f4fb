package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/session"
)

// ComparisonText is the plain-text comparison put on the clipboard.
func ComparisonText(s *session.Session) string {
	var b strings.Builder
	var bound []*model.Entity
	for _, binding := range s.Bindings() {
		e := s.Entity(binding.Name)
		if e == nil {
			fmt.Fprintf(&b, "%s: (empty)\n", binding.Name)
			continue
		}
		bound = append(bound, e)
		fmt.Fprintf(&b, "%s: %s\n", binding.Name, entityLine(e))
	}
	if len(bound) == 2 {
		d := model.Round2(bound[0].Score - bound[1].Score)
		fmt.Fprintf(&b, "Score difference: %+.2f\n", d)
	}
	if g := s.Gaps(); g != nil {
		fmt.Fprintf(&b, "State gaps: avg %+.2f, urban %+.2f, suburban %+.2f, rural %+.2f\n",
			g.AvgScoreGap, g.UrbanGap, g.SuburbanGap, g.RuralGap)
	}
	return strings.TrimRight(b.String(), "\n")
}

func entityLine(e *model.Entity) string {
	if e.Kind == model.KindState {
		return fmt.Sprintf("%s, state average %.2f", e.Display(), e.Score)
	}
	line := fmt.Sprintf("%s, score %.2f", e.Display(), e.Score)
	if e.NationalRank > 0 {
		line += fmt.Sprintf(", #%d nationally (%.1f percentile)", e.NationalRank, e.NationalPercentile)
	}
	if e.Urbanicity != "" {
		line += ", " + string(e.Urbanicity)
	}
	return line
}
