package agent

import (
	"strings"

	"github.com/codefionn/mathchat/internal/tools"
)

const (
	promptPrefix = `Answer the following questions as best you can. You have access to the following tools:`

	formatInstructions = `Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question`

	promptSuffix = `Begin!

Question: {input}
Thought:{agent_scratchpad}`
)

// stopSequences end a completion before the model invents its own observation.
var stopSequences = []string{"\nObservation:", "\n\tObservation:"}

// BuildPrompt renders the zero-shot ReAct prompt for question, listing the
// registry's tools and the scratchpad of earlier steps.
func BuildPrompt(registry *tools.Registry, question string, steps []Step) string {
	instructions := strings.ReplaceAll(formatInstructions, "{tool_names}", strings.Join(registry.Names(), ", "))

	suffix := strings.ReplaceAll(promptSuffix, "{input}", question)
	suffix = strings.ReplaceAll(suffix, "{agent_scratchpad}", scratchpad(steps))

	return strings.Join([]string{promptPrefix, registry.Describe(), instructions, suffix}, "\n\n")
}

// scratchpad replays the model's own text with each observation appended.
func scratchpad(steps []Step) string {
	var sb strings.Builder
	for _, step := range steps {
		sb.WriteString(step.Log)
		sb.WriteString("\nObservation: ")
		sb.WriteString(step.Observation)
		sb.WriteString("\nThought: ")
	}
	return sb.String()
}
