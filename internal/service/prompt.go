package service

import (
	"fmt"
	"strings"

	"github.com/techoasis/helpdesk-rag/internal/ai"
)

const systemPrompt = `You are the TechOasis assistant for the IT asset helpdesk.
- ALWAYS answer in the LANGUAGE of the message.
- Be concise and give PROCEDURES as NUMBERED steps.
- Terminology: Dashboard → Tickets → New/Edit.
- Fields: Title, Description, Priority, Status, Comment.
- Use the knowledge-base context when provided.
- Do not fabricate information. Ask at most ONE clarifying question if necessary.`

const (
	contextSeparator = "\n---\n"
	noContextMarker  = "(none)"
)

// buildContextBlock joins retrieved chunk texts in ranked order and hard-cuts
// the result at maxChars. Ranking already happened; truncation is a budget
// cut, not a re-rank.
func buildContextBlock(texts []string, maxChars int) string {
	joined := strings.Join(texts, contextSeparator)
	if len(joined) > maxChars {
		return joined[:maxChars]
	}
	return joined
}

func buildPrompt(question, kbContext string) ai.Prompt {
	return ai.Prompt{
		System: systemPrompt,
		User:   buildUserContent(question, kbContext),
	}
}

func buildUserContent(question, kbContext string) string {
	if strings.TrimSpace(kbContext) == "" {
		kbContext = noContextMarker
	}
	return fmt.Sprintf(`QUESTION:
%s

=== KB CONTEXT (if any) ===
%s
=== END CONTEXT ===

If no context is relevant, apply the standard procedure:
1) Open Dashboard → Tickets → New.
2) Fill in: Title, Description (problem details), Priority, Status.
3) (Optional) Comment and attachments.
4) Submit and note the ticket number.
Answer in the language of the question.`, question, kbContext)
}
