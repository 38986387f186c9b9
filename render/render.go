// Package render serializes an enhanced prompt into the output formats
// offered to the user: plain text, a minimal XML document, and a JSON object.
// All three are pure functions of the final prompt string and never fail.
package render

import (
	"bytes"
	"encoding/json"
	"strings"
)

// xmlEscaper rewrites the five characters that must not appear literally in
// XML text content. Quote and apostrophe use numeric entities so the output
// stays valid inside attribute values too.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

// PlainText returns the prompt unchanged.
func PlainText(enhanced string) string {
	return enhanced
}

// XML wraps the prompt in a fixed two-element document:
//
//	<prompt>
//	  <enhanced>...</enhanced>
//	</prompt>
//
// The text content is escaped, so the document is well-formed for any input
// and parsing it yields the original string exactly.
func XML(enhanced string) string {
	var b strings.Builder
	b.Grow(len(enhanced) + 48)
	b.WriteString("<prompt>\n  <enhanced>")
	b.WriteString(xmlEscaper.Replace(enhanced))
	b.WriteString("</enhanced>\n</prompt>")
	return b.String()
}

// jsonPayload is the single-key JSON envelope.
type jsonPayload struct {
	EnhancedPrompt string `json:"enhanced_prompt"`
}

// JSON returns {"enhanced_prompt": ...} with two-space indentation. HTML
// escaping is disabled and non-ASCII characters are emitted as UTF-8
// literals rather than \uXXXX sequences. There is no trailing newline.
func JSON(enhanced string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Encoding a struct of one string field cannot fail.
	_ = enc.Encode(jsonPayload{EnhancedPrompt: enhanced})
	return strings.TrimRight(buf.String(), "\n")
}
