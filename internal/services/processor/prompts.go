package processor

import (
	"fmt"
	"strings"

	"github.com/ecocomply/extract/internal/models"
)

// systemPrompt frames the model as a compliance analyst for the specific
// document type. The hints supply regulator context and the condition
// numbering scheme the document uses.
func systemPrompt(hints models.DocumentHints) string {
	var b strings.Builder
	b.WriteString("You are a UK environmental compliance analyst. You extract discrete, actionable compliance obligations from regulatory documents.\n\n")
	b.WriteString(hints.PromptContext())
	b.WriteString("\n\nCondition references in this document follow the pattern: ")
	b.WriteString(hints.ConditionPattern())
	b.WriteString("\n\nRespond ONLY with a JSON array. Each element must have these fields:\n")
	b.WriteString(`  "condition_reference" (string), "title" (string, max 80 chars), "description" (string), "category" (one of: monitoring, reporting, record_keeping, operational, maintenance, notification, limit), "frequency" (one of: continuous, daily, weekly, monthly, quarterly, annual, on_event, one_off), "confidence_score" (number 0 to 1)`)
	b.WriteString("\n\nDo not include explanatory text outside the JSON array. If a section contains no obligations, respond with [].")
	return b.String()
}

// segmentPrompt wraps one document segment. Segment position is stated so
// the model does not treat a mid-document slice as a complete document.
func segmentPrompt(segment string, index, total int) string {
	if total <= 1 {
		return fmt.Sprintf("Extract all compliance obligations from this document:\n\n%s", segment)
	}
	return fmt.Sprintf(
		"Extract all compliance obligations from segment %d of %d of this document. The segment may begin or end mid-section; extract only obligations whose text appears in this segment.\n\n%s",
		index+1, total, segment)
}
