package ai

import "github.com/cloudwego/eino/schema"

const rewriteToolName = "submit_rewrite"

// RewriteSchema is the response shape published to the oracle as a tool definition.
func RewriteSchema() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: rewriteToolName,
		Desc: "Submit the rewritten text together with every phrase-level change that was made.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"rewrittenText": {
				Desc:     "The full rewritten passage.",
				Type:     schema.String,
				Required: true,
			},
			"changes": {
				Desc:     "Phrase-level changes, in order of appearance in the rewritten text.",
				Type:     schema.Array,
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"original": {
							Desc:     "Phrase from the original text.",
							Type:     schema.String,
							Required: true,
						},
						"paraphrased": {
							Desc:     "Replacement phrase exactly as it appears in rewrittenText.",
							Type:     schema.String,
							Required: true,
						},
						"kind": {
							Desc:     "Reason for the change.",
							Type:     schema.String,
							Enum:     []string{"synonym", "grammar", "tone"},
							Required: true,
						},
						"startIndex": {
							Desc:     "Character offset of the paraphrased phrase in rewrittenText.",
							Type:     schema.Integer,
							Required: true,
						},
						"endIndex": {
							Desc:     "Character offset just past the paraphrased phrase.",
							Type:     schema.Integer,
							Required: true,
						},
					},
				},
			},
		}),
	}
}
