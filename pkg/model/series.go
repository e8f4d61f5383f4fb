package model

// Series is a labelled set of totals drawn as one bar chart.
type Series struct {
	Title  string
	Labels []string
	Values []float64
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Labels) }

// Max returns the largest value, or 0 for an empty series.
func (s Series) Max() float64 {
	var m float64
	for _, v := range s.Values {
		if v > m {
			m = v
		}
	}
	return m
}

type metricKey struct {
	label string
	keys  []string
}

// Payloads from older data services suffix totals with "_sum".
var engagementKeys = []metricKey{
	{"Membership", []string{"membership", "membership_sum"}},
	{"Volunteering", []string{"volunteer", "volunteer_sum"}},
	{"Events", []string{"events", "events_sum"}},
	{"Civic actions", []string{"take_action", "take_action_sum"}},
}

var stateKeys = []metricKey{
	{"Average", []string{"avg_score"}},
	{"Urban", []string{"urban_avg"}},
	{"Suburban", []string{"suburban_avg"}},
	{"Rural", []string{"rural_avg"}},
}

func metric(m map[string]float64, keys []string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return 0
}

// EngagementSeries builds the chart drawn for a bound entity. States chart
// their urbanicity averages instead of engagement totals.
func EngagementSeries(e *Entity) Series {
	if e == nil {
		return Series{}
	}
	keys := engagementKeys
	title := "Engagement"
	if e.Kind == KindState {
		keys = stateKeys
		title = "Civic opportunity score"
	}
	s := Series{Title: title + ": " + e.Display()}
	for _, k := range keys {
		s.Labels = append(s.Labels, k.label)
		s.Values = append(s.Values, metric(e.Metrics, k.keys))
	}
	return s
}

// OrgTypeSeries builds the organization breakdown chart in payload order.
func OrgTypeSeries(e *Entity) Series {
	if e == nil {
		return Series{}
	}
	s := Series{Title: "Organizations: " + e.Display()}
	for _, o := range e.OrgTypes {
		s.Labels = append(s.Labels, o.Class)
		s.Values = append(s.Values, float64(o.Count))
	}
	return s
}
