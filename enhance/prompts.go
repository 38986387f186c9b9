package enhance

import "fmt"

const systemPrompt = "You are an expert prompt engineer. " +
	"Rewrite the user's inputs into a single, clear, elaborate, and actionable prompt for GPT. " +
	"IMPORTANT: Do not execute the task. Return only the enhanced prompt itself. " +
	"The enhanced prompt MUST instruct GPT to list key assumptions and ask clarifying questions BEFORE responding."

const userPromptTemplate = `Inputs given:
Role: %s
Context: %s
Task: %s

Rewrite into an expanded, polished prompt that enriches details, emphasizes clarity, and guides GPT to respond with structure and depth. The enhanced prompt should be more elaborate than the original instructions.`

// SystemPrompt returns the system message sent with every external call.
// It constrains the model to rewriting rather than executing the task.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the user message that carries the three inputs.
func UserPrompt(in PromptInputs) string {
	return fmt.Sprintf(userPromptTemplate, in.Role, in.Context, in.Task)
}
