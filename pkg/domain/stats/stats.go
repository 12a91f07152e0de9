package stats

import "sort"

type Metric string

const (
	MetricAccess Metric = "access"
	MetricTokens Metric = "tokens"

	TotalPeriod = "total"
)

var Metrics = []Metric{MetricAccess, MetricTokens}

// Counters maps period key -> label -> value.
type Counters map[string]map[string]int64

func (c Counters) Add(period, label string, delta int64) {
	labels, ok := c[period]
	if !ok {
		labels = make(map[string]int64)
		c[period] = labels
	}
	labels[label] += delta
}

// Set overwrites one counter.
func (c Counters) Set(period, label string, value int64) {
	labels, ok := c[period]
	if !ok {
		labels = make(map[string]int64)
		c[period] = labels
	}
	labels[label] = value
}

func (c Counters) Get(period, label string) int64 {
	return c[period][label]
}

func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for period, labels := range c {
		cp := make(map[string]int64, len(labels))
		for label, v := range labels {
			cp[label] = v
		}
		out[period] = cp
	}
	return out
}

// Subtract removes other from c and drops entries that reach zero.
func (c Counters) Subtract(other Counters) {
	for period, labels := range other {
		for label, v := range labels {
			c.Add(period, label, -v)
			if c[period][label] == 0 {
				delete(c[period], label)
			}
		}
		if len(c[period]) == 0 {
			delete(c, period)
		}
	}
}

func (c Counters) IsZero() bool {
	for _, labels := range c {
		for _, v := range labels {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// Labels returns every label seen in any period, sorted.
func (c Counters) Labels() []string {
	seen := make(map[string]struct{})
	for _, labels := range c {
		for label := range labels {
			seen[label] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Snapshot is the full usage picture, serialized as
// {"access": {period: {label: n}}, "tokens": {...}}.
type Snapshot struct {
	Access Counters `json:"access"`
	Tokens Counters `json:"tokens"`
}

func NewSnapshot() Snapshot {
	return Snapshot{
		Access: make(Counters),
		Tokens: make(Counters),
	}
}

func (s Snapshot) Counters(m Metric) Counters {
	if m == MetricTokens {
		return s.Tokens
	}
	return s.Access
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Access: s.Access.Clone(),
		Tokens: s.Tokens.Clone(),
	}
}

func (s Snapshot) Subtract(other Snapshot) {
	s.Access.Subtract(other.Access)
	s.Tokens.Subtract(other.Tokens)
}

func (s Snapshot) IsZero() bool {
	return s.Access.IsZero() && s.Tokens.IsZero()
}

// Summary is one label's counters for the periods containing "now".
type Summary struct {
	Label   string `json:"label"`
	Total   int64  `json:"total"`
	Daily   int64  `json:"daily"`
	Weekly  int64  `json:"weekly"`
	Monthly int64  `json:"monthly"`
	Yearly  int64  `json:"yearly"`
}

func Summarize(c Counters, keys PeriodKeys) []Summary {
	labels := c.Labels()
	out := make([]Summary, 0, len(labels))
	for _, label := range labels {
		out = append(out, Summary{
			Label:   label,
			Total:   c.Get(keys.Total, label),
			Daily:   c.Get(keys.Day, label),
			Weekly:  c.Get(keys.Week, label),
			Monthly: c.Get(keys.Month, label),
			Yearly:  c.Get(keys.Year, label),
		})
	}
	return out
}
