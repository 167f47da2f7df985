package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RegisterGenkit exposes the catalog to the model layer. Each tool is defined
// with its typed input struct so the model sees the full parameter schema;
// execution delegates to the registry, which owns validation and the failure
// envelopes. The returned refs go straight into ai.WithTools.
func RegisterGenkit(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	return []ai.ToolRef{
		defineTool[executeSQLInput](g, reg, "execute_sql_query"),
		defineTool[tableInfoInput](g, reg, "get_table_info"),
		defineTool[analyticsSummaryInput](g, reg, "get_analytics_summary"),
		defineTool[chartConfigInput](g, reg, "generate_chart_config"),
		defineTool[suggestVisualizationInput](g, reg, "suggest_visualization"),
		defineTool[outlineInput](g, reg, "create_presentation_outline"),
		defineTool[addChartInput](g, reg, "add_chart_to_presentation"),
		defineTool[suggestSlidesInput](g, reg, "generate_presentation_suggestions"),
	}
}

func defineTool[In any](g *genkit.Genkit, reg *Registry, name string) ai.Tool {
	description := ""
	if t := reg.Lookup(name); t != nil {
		description = t.Description
	}
	return genkit.DefineTool(g, name, description,
		func(ctx *ai.ToolContext, in In) (string, error) {
			return reg.Invoke(ctx.Context, name, in), nil
		})
}
