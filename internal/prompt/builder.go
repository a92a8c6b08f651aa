// Package prompt builds the grounded instruction prompt sent to the generative model.
package prompt

import (
	"strings"
)

// FallbackAnswer is the sentence the model must return verbatim when the context does not
// contain the answer.
const FallbackAnswer = "I don't have enough information in the provided documents to answer this question."

// EmptyContextMarker stands in for the context block when nothing was retrieved.
const EmptyContextMarker = "(no context passages were retrieved)"

const persona = `You are a tax and legal research assistant. You answer questions using ONLY the
context passages supplied below, which are excerpts from official legal and tax documents.
You do not have access to any other information.`

// Input is everything the prompt depends on.
type Input struct {
	// Context is the rendered context block; it may be empty.
	Context string
	// Question is inserted verbatim.
	Question string
	// Sources are the cleaned source names the model may cite, in order of first appearance.
	// Duplicates are removed.
	Sources []string
}

// Build renders the prompt: persona, context, question, then the rules including the list of
// citable sources. It has no side effects and the same Input always yields the same prompt.
func Build(in Input) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")

	b.WriteString("=== CONTEXT ===\n")
	if strings.TrimSpace(in.Context) == "" {
		b.WriteString(EmptyContextMarker)
	} else {
		b.WriteString(in.Context)
	}
	b.WriteString("\n=== END CONTEXT ===\n\n")

	b.WriteString("=== QUESTION ===\n")
	b.WriteString(in.Question)
	b.WriteString("\n=== END QUESTION ===\n\n")

	writeRules(&b, Distinct(in.Sources))
	return b.String()
}

func writeRules(b *strings.Builder, sources []string) {
	b.WriteString("=== RULES ===\n")
	b.WriteString("1. Use only the information in the context passages above.\n")
	b.WriteString("2. Do not use outside knowledge, assumptions, or information from your training data.\n")
	b.WriteString("3. If the context does not contain enough information to answer, reply with exactly this sentence and nothing else:\n")
	b.WriteString("   \"" + FallbackAnswer + "\"\n")
	b.WriteString("4. End every factual sentence with a citation in the form (Source: <source name>).\n")
	b.WriteString("   Cite the source name only. Never cite the passage labels such as SRC-1.\n")
	b.WriteString("5. You may only cite these source names:\n")
	if len(sources) == 0 {
		b.WriteString("   (none)\n")
	}
	for _, s := range sources {
		b.WriteString("   - " + s + "\n")
	}
	b.WriteString("6. Formatting:\n")
	b.WriteString("   - Write short paragraphs separated by a blank line.\n")
	b.WriteString("   - Use \"-\" as the bullet marker for lists.\n")
	b.WriteString("   - Use **bold** only for key figures, rates, deadlines and defined terms.\n")
	b.WriteString("   - When comparing items, use a Markdown table and cite the source in every row or cell.\n")
	b.WriteString("=== END RULES ===\n")
}

// Distinct returns names with duplicates and empty names removed, keeping first appearance order.
func Distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
