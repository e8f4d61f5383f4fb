package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/civicmap/pkg/chart"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	defer metrics.Timer(metrics.UIRender)()

	header := m.theme.Header.Width(m.width).Render(
		fmt.Sprintf("civicmap · %s", m.sess.Mode()))
	panels := m.renderSlotPanels()
	footer := m.renderFooter()

	mapH := max(m.height-lipgloss.Height(header)-lipgloss.Height(panels)-lipgloss.Height(footer)-2, 4)
	var bottom string
	if q := m.sess.Quest(); q != nil {
		left := max(m.width/2, 20)
		mapPanel := PanelStyle.Width(left - 2).Render(renderMap(m.sess.Map(), left-4, mapH, m.theme))
		bottom = lipgloss.JoinHorizontal(lipgloss.Top, mapPanel, m.renderQuestPanel(m.width-left, mapH))
	} else {
		bottom = PanelStyle.Width(m.width - 2).Render(renderMap(m.sess.Map(), m.width-4, mapH, m.theme))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, bottom, footer)
}

// slotPanelHeight is the height of the row of slot panels.
func (m Model) slotPanelHeight() int {
	return min(max(m.height/2, 12), 24)
}

func (m Model) renderSlotPanels() string {
	var cols []string
	n := len(m.sess.Slots())
	w := max(m.width/n, 24)
	for i, f := range m.fields {
		if f.slot == "" {
			continue
		}
		cols = append(cols, m.renderSlotPanel(f, i == m.focus, w))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderSlotPanel(f field, focused bool, width int) string {
	inner := width - 4
	var lines []string

	label := m.theme.SlotStyle(f.slot).Render(strings.ToUpper(string(f.slot)))
	if f.slot == m.hovered {
		label += m.theme.MutedText.Render(" (highlighted)")
	}
	lines = append(lines, label, f.input.View())

	if hits := m.sess.Suggestions(f.slot); focused && len(hits) > 0 {
		for i, h := range hits[:min(len(hits), maxShownHits)] {
			text := truncate(fmt.Sprintf("%s  %s", h.Display, m.theme.MutedText.Render(h.ID)), inner-2)
			if i == f.cursor {
				lines = append(lines, m.theme.Selected.Render(text))
			} else {
				lines = append(lines, "  "+text)
			}
		}
	}
	if notice := m.sess.Notice(f.slot); notice != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorWarning).Render(truncate(notice, inner)))
	}

	e := m.sess.Entity(f.slot)
	if id := m.requested[f.slot]; id != "" && m.sess.Pending(id) && (e == nil || e.ID != id) {
		lines = append(lines, m.theme.MutedText.Render("loading "+id+"…"))
	}
	if e != nil {
		lines = append(lines, RenderDivider(inner), m.renderCard(e, inner))
		if surf, ok := m.sess.Charts().Surface(f.slot).(*chart.TermSurface); ok {
			if view := surf.View(); view != "" {
				lines = append(lines, "", view)
			}
		}
	}

	style := PanelStyle
	if focused {
		style = FocusedPanelStyle
	}
	return style.Width(width - 2).Height(m.slotPanelHeight()).MaxHeight(m.slotPanelHeight() + 2).
		Render(strings.Join(lines, "\n"))
}

// renderCard is the overview of one bound entity.
func (m Model) renderCard(e *model.Entity, width int) string {
	name := m.theme.Title.Render(truncate(e.Display(), width))
	if e.Kind == model.KindState {
		s := e.Summary
		if s == nil {
			return name
		}
		return strings.Join([]string{
			name,
			fmt.Sprintf("Average %.2f across %d counties", s.AvgScore, s.CountyCount),
			fmt.Sprintf("%s %.2f  %s %.2f  %s %.2f",
				RenderUrbanicityBadge(model.Urban), s.UrbanAvg,
				RenderUrbanicityBadge(model.Suburban), s.SuburbanAvg,
				RenderUrbanicityBadge(model.Rural), s.RuralAvg),
		}, "\n")
	}

	lines := []string{
		name,
		fmt.Sprintf("%s  pop %s  score %.2f", RenderUrbanicityBadge(e.Urbanicity), formatPopulation(e.Population), e.Score),
		fmt.Sprintf("state %s  nation %s", RenderRankBadge(e.StateRank, 0), RenderRankBadge(e.NationalRank, 0)),
		fmt.Sprintf("%s %5.1f pct", RenderMiniBar(e.NationalPercentile/100, min(20, max(width-10, 4)), m.theme), e.NationalPercentile),
	}
	if len(e.Peers) > 0 {
		names := make([]string, 0, len(e.Peers))
		for _, p := range e.Peers {
			names = append(names, p.Name)
		}
		lines = append(lines, m.theme.MutedText.Render(truncate("peers: "+strings.Join(names, ", "), width)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderQuestPanel(width, height int) string {
	q := m.sess.Quest()
	inner := width - 4
	var lines []string
	lines = append(lines, m.questVP.View())

	if g := m.sess.Gaps(); g != nil {
		lines = append(lines, fmt.Sprintf("gaps  avg %s  urb %s  sub %s  rur %s",
			RenderGap(g.AvgScoreGap), RenderGap(g.UrbanGap), RenderGap(g.SuburbanGap), RenderGap(g.RuralGap)))
	}
	if notice := q.Notice(); notice != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorWarning).Render(truncate(notice, inner)))
	}

	var actions []string
	for i, id := range q.Actions() {
		if i >= len(m.keys.Actions) {
			break
		}
		actions = append(actions, fmt.Sprintf("%s %s",
			m.theme.Title.Render(m.keys.Actions[i].Help().Key), q.Copy().Get(id)))
	}
	lines = append(lines, RenderDivider(inner), strings.Join(actions, "  "))

	for i, f := range m.fields {
		if f.slot == "" {
			label := m.theme.MutedText.Render("states")
			if i == m.focus {
				label = m.theme.Title.Render("states")
			}
			lines = append(lines, label+" "+f.input.View())
		}
	}

	style := PanelStyle
	if m.fields[m.focus].slot == "" {
		style = FocusedPanelStyle
	}
	return style.Width(width - 2).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	var line string
	if m.statusMsg != "" {
		line = RenderStatus(m.statusMsg, m.statusErr, m.width)
	} else {
		line = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	if !m.opts.Debug {
		return line
	}
	var parts []string
	for _, s := range metrics.AllTimingStats() {
		parts = append(parts, fmt.Sprintf("%s %.1fms", s.Name, s.AvgMs))
	}
	debug := fmt.Sprintf("geo %d · bound %s", m.geoCount, boundSummary(m.sess.Bindings()))
	if len(parts) > 0 {
		debug += " · " + strings.Join(parts, " ")
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, m.theme.MutedText.Render(truncate(debug, m.width)))
}

func boundSummary(bs []slot.Binding) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}
