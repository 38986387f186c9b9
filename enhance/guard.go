package enhance

import "strings"

// clarificationMarkers are matched case-insensitively as substrings. All
// of them must be present for a prompt to count as already asking the
// model to clarify before answering.
var clarificationMarkers = []string{
	"before responding",
	"clarifying questions",
	"assumptions",
}

const clarificationAppendix = "# Important Instructions for GPT (auto-appended)\n" +
	"1) **Before responding**, list key assumptions.\n" +
	"2) Ask 2–4 **clarifying questions** and wait for my answers first."

// EnsureClarification guarantees the prompt instructs the model to state
// assumptions and ask clarifying questions before answering. Text that
// already carries all three markers is returned trimmed but otherwise
// unchanged; text missing any marker gets the standard appendix. The
// appendix itself carries all the markers, so the function is idempotent.
func EnsureClarification(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, marker := range clarificationMarkers {
		if !strings.Contains(lower, marker) {
			if trimmed == "" {
				return clarificationAppendix
			}
			return trimmed + "\n\n" + clarificationAppendix
		}
	}
	return trimmed
}
