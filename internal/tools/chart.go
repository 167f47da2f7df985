package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/quarry0/quarry/internal/artifact"
)

type chartConfigInput struct {
	ChartType string           `json:"chart_type" jsonschema:"chart type: line, bar, pie, area or scatter"`
	Title     string           `json:"title" jsonschema:"chart title to display"`
	Data      []map[string]any `json:"data" jsonschema:"data points, one object per row"`
	XAxisKey  string           `json:"x_axis_key" jsonschema:"the data key to use for the x axis"`
	YAxisKeys []string         `json:"y_axis_keys" jsonschema:"data keys to plot on the y axis"`
	Colors    []string         `json:"colors,omitempty" jsonschema:"optional colors for each y axis series"`
}

type suggestVisualizationInput struct {
	DataDescription string `json:"data_description" jsonschema:"description of the data structure and content"`
	QueryIntent     string `json:"query_intent" jsonschema:"what the user wants to understand or analyze"`
}

// visualizationRules maps intent keywords to a recommended chart type, first
// match wins. The catch-all comparison rule must stay last.
var visualizationRules = []struct {
	keywords  []string
	chartType artifact.ChartType
	reason    string
}{
	{[]string{"trend", "over time", "monthly", "yearly", "growth"},
		artifact.ChartLine, "Line charts are ideal for showing trends over time"},
	{[]string{"compare", "versus", "between", "top", "by region", "by category"},
		artifact.ChartBar, "Bar charts are great for comparing categories or groups"},
	{[]string{"share", "percentage", "proportion", "distribution"},
		artifact.ChartPie, "Pie charts show part-to-whole relationships"},
	{[]string{"relationship", "correlation", "impact"},
		artifact.ChartScatter, "Scatter plots reveal correlations between variables"},
	{[]string{"cumulative"},
		artifact.ChartArea, "Area charts show cumulative values over time"},
	{nil, artifact.ChartBar, "Bar charts are great for comparing categories or groups"},
}

// NewChart builds the chart synthesis tools. They are pure and never fail.
func NewChart() ([]*Tool, error) {
	generate, err := New("generate_chart_config",
		"Generate a chart configuration for the frontend to render. "+
			"Use after fetching data to visualize it as a line, bar, pie, area or scatter chart.",
		func(_ context.Context, in chartConfigInput) (string, error) {
			c := artifact.Chart{
				ChartType: artifact.ChartType(in.ChartType),
				Title:     in.Title,
				Data:      in.Data,
				XAxisKey:  in.XAxisKey,
				YAxisKeys: in.YAxisKeys,
				Colors:    in.Colors,
			}
			c.Normalize()
			b, err := json.Marshal(c)
			if err != nil {
				return Errorf("encode chart: %v", err), nil
			}
			return string(b), nil
		})
	if err != nil {
		return nil, err
	}

	suggest, err := New("suggest_visualization",
		"Suggest the best visualization type for the data and the user's analytical intent.",
		func(_ context.Context, in suggestVisualizationInput) (string, error) {
			chartType, reason := recommendChart(in.QueryIntent)
			b, err := json.Marshal(map[string]any{
				"success": true,
				"recommendation": map[string]any{
					"chart_type": chartType,
					"reason":     reason,
				},
				"data_description": in.DataDescription,
				"query_intent":     in.QueryIntent,
			})
			if err != nil {
				return Errorf("encode recommendation: %v", err), nil
			}
			return string(b), nil
		})
	if err != nil {
		return nil, err
	}

	return []*Tool{generate, suggest}, nil
}

func recommendChart(intent string) (artifact.ChartType, string) {
	lower := strings.ToLower(intent)
	for _, rule := range visualizationRules {
		if len(rule.keywords) == 0 {
			return rule.chartType, rule.reason
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.chartType, rule.reason
			}
		}
	}
	return artifact.ChartBar, "Bar charts are great for comparing categories or groups"
}
