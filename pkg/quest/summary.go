package quest

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// Title returns the title of the current stage.
func (c *Controller) Title() string {
	return c.copy.Get(fmt.Sprintf("STAGE_%d_TITLE", c.Stage()))
}

// Intro returns the narrative of the current stage as Markdown.
func (c *Controller) Intro() string {
	switch c.Stage() {
	case StateExplorer:
		return c.copy.Format("STAGE_2_INTRO", []any{c.HomeState()})
	default:
		return c.copy.Get(fmt.Sprintf("STAGE_%d_INTRO", c.Stage()))
	}
}

// Markdown renders the stage narrative, the learned state profile and the
// challenge outcomes.
func (c *Controller) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", c.Title(), c.Intro())
	fmt.Fprintf(&b, "**XP:** %d\n\n", c.xp)

	if len(c.badgeOrder) > 0 {
		b.WriteString("## Badges\n\n")
		for _, badge := range c.badgeOrder {
			fmt.Fprintf(&b, "- %s\n", c.BadgeLabel(badge))
		}
		b.WriteString("\n")
	}

	if c.home != nil {
		h := c.home
		fmt.Fprintf(&b, "## %s\n\n", h.Display())
		fmt.Fprintf(&b, "Score **%.2f**, rank %d in %s and %d nationally (%.1f percentile). %s.\n\n",
			h.Score, h.StateRank, h.ParentRegion, h.NationalRank, h.NationalPercentile, urbanicityText(h.Urbanicity))
	}

	if s := c.summary; s != nil && c.Stage() >= StateExplorer {
		fmt.Fprintf(&b, "## %s at a glance\n\n", s.State)
		b.WriteString("| | Average | Counties |\n|---|---:|---:|\n")
		fmt.Fprintf(&b, "| All | %.2f | %d |\n", s.AvgScore, s.CountyCount)
		fmt.Fprintf(&b, "| Urban | %.2f | %d |\n", s.UrbanAvg, s.UrbanCount)
		fmt.Fprintf(&b, "| Suburban | %.2f | %d |\n", s.SuburbanAvg, s.SuburbanCount)
		fmt.Fprintf(&b, "| Rural | %.2f | %d |\n\n", s.RuralAvg, s.RuralCount)
		if s.TopCounty != "" {
			fmt.Fprintf(&b, "Top county: **%s** (%.2f).\n\n", s.TopCounty, s.TopCountyScore)
		}
	}

	for _, r := range c.results {
		b.WriteString(resultMarkdown(r))
	}

	b.WriteString("---\n\n")
	for i, id := range c.Actions() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.copy.Get(id))
	}
	return b.String()
}

func urbanicityText(u model.Urbanicity) string {
	if u == "" {
		return "Urbanicity unknown"
	}
	return string(u)
}

func resultMarkdown(r Result) string {
	var b strings.Builder
	switch r.Challenge {
	case ChallengeStates:
		if r.Mine == nil || r.Other == nil {
			return ""
		}
		fmt.Fprintf(&b, "## %s vs %s\n\n", r.Mine.ID, r.Other.ID)
		if g := r.Gaps; g != nil {
			fmt.Fprintf(&b, "- Average gap: %+.2f\n- Urban gap: %+.2f\n- Suburban gap: %+.2f\n- Rural gap: %+.2f\n\n",
				g.AvgScoreGap, g.UrbanGap, g.SuburbanGap, g.RuralGap)
		}
	case ChallengeCounty:
		if r.Mine == nil || r.Other == nil {
			return ""
		}
		fmt.Fprintf(&b, "## %s vs %s\n\n", r.Mine.Display(), r.Other.Display())
		fmt.Fprintf(&b, "Score gap: %+.2f\n\n", model.Round2(r.Mine.Score-r.Other.Score))
	case ChallengePeers:
		if r.Mine == nil {
			return ""
		}
		fmt.Fprintf(&b, "## %s and its peers\n\n", r.Mine.Display())
		b.WriteString("| County | Score | Gap |\n|---|---:|---:|\n")
		for _, p := range r.Mine.Peers {
			fmt.Fprintf(&b, "| %s, %s | %.2f | %+.2f |\n", p.Name, p.State, p.Score, model.Round2(r.Mine.Score-p.Score))
		}
		b.WriteString("\n")
	}
	return b.String()
}
