package tools

const (
	ToolNameCalculator = "Calculator"
	ToolNameWikipedia  = "Wikipedia"
	ToolNameReasoning  = "Reasoning tool"
)
