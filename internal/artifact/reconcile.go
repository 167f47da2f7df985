package artifact

import (
	"encoding/json"
	"fmt"
)

// Signature returns a stable structural signature for a chart. Charts are
// canonicalized as JSON (map keys sort during encoding, so data rows equal up
// to key order sign identically). A chart whose data cannot be serialized
// falls back to its fmt-rendered form, which is a weaker signature:
// near-duplicates with incidental formatting differences may not collapse.
func Signature(c Chart) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	return string(b)
}

// DedupeCharts collapses structurally equal charts, keeping the first
// occurrence of each and preserving first-seen order.
func DedupeCharts(charts []Chart) []Chart {
	if len(charts) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(charts))
	out := make([]Chart, 0, len(charts))
	for _, c := range charts {
		sig := Signature(c)
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ApplyUpdate applies an edit event to a presentation and returns the result
// as a new value; the input is never mutated. The update is a no-op (the
// input is returned unchanged) unless its target presentation id matches and
// its action is add_chart. The targeted slide's content type becomes chart
// and its chart payload is set from the update; applying the same update
// twice yields the same result as once.
func ApplyUpdate(p Presentation, u PresentationUpdate) Presentation {
	if u.PresentationID != p.PresentationID || u.Action != ActionAddChart {
		return p
	}

	target := -1
	for i := range p.Slides {
		if p.Slides[i].ID == u.SlideID {
			target = i
			break
		}
	}
	if target < 0 {
		return p
	}

	out := p.Clone()
	out.Slides[target].ContentType = SlideChart
	out.Slides[target].ChartConfig = decodeUpdateChart(u.ChartConfig)
	out.Slides[target].Content = out.Slides[target].ChartConfig
	return out
}

// decodeUpdateChart decodes the chart payload of an update. The payload may
// arrive as a chart object or as a JSON-encoded string holding one; a string
// that fails to decode is wrapped as a raw-content chart so the frontend can
// still display something.
func decodeUpdateChart(raw json.RawMessage) *Chart {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var c Chart
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return &Chart{
				Type: TypeChart,
				Data: []map[string]any{{"raw": s}},
			}
		}
		c.Normalize()
		return &c
	}

	var c Chart
	if err := json.Unmarshal(raw, &c); err != nil {
		return &Chart{
			Type: TypeChart,
			Data: []map[string]any{{"raw": string(raw)}},
		}
	}
	c.Normalize()
	return &c
}

// Merge produces the final artifact set for a turn. Tool-sourced charts come
// before parser-sourced charts in the dedupe input, so tool output wins
// positionally. Staged updates are applied in arrival order against every
// presentation; each update is independently a no-op for presentations it
// does not target.
func Merge(toolCharts, parserCharts []Chart, toolPres, parserPres []Presentation, updates []PresentationUpdate) ([]Chart, []Presentation) {
	charts := DedupeCharts(append(append([]Chart(nil), toolCharts...), parserCharts...))

	pres := make([]Presentation, 0, len(toolPres)+len(parserPres))
	pres = append(pres, toolPres...)
	pres = append(pres, parserPres...)
	for i := range pres {
		for _, u := range updates {
			pres[i] = ApplyUpdate(pres[i], u)
		}
	}
	return charts, pres
}
