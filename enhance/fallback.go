package enhance

import (
	"fmt"
	"strings"
)

const fallbackTemplate = `You are tasked with acting as %s.

Background:
%s

Objective:
%s

Your enhanced prompt should expand on these inputs with clear structure, numbered steps, and explanatory depth. It must:
- Summarize the role and context in richer detail.
- Translate vague tasks into explicit, step-by-step goals.
- Require GPT to clarify missing assumptions and ask 2–4 targeted questions before giving a final response.
- Insist GPT provides a structured, beginner-friendly explanation in plain language.`

// FallbackPrompt renders the deterministic offline template. It performs
// no I/O and produces the same output for the same inputs, so it is safe
// to use when no API key or network is available.
func FallbackPrompt(in PromptInputs) string {
	return strings.TrimSpace(fmt.Sprintf(fallbackTemplate, in.Role, in.Context, in.Task))
}
