package prompts

import (
	"fmt"
	"strings"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// ExtractionContext is the 3-layer context injected into every extraction
// call: what the model already contains, what we currently believe, and what
// we still don't know.
type ExtractionContext struct {
	EntityInventory string
	Memory          string
	Gaps            string
}

// BuildExtractionPrompt creates the prompt for extracting entity patches from
// one chunk of signal text.
func BuildExtractionPrompt(chunkID, chunkText string, extractionCtx ExtractionContext, authority models.SourceAuthority) string {
	var prompt strings.Builder

	prompt.WriteString("# Requirements Signal Extraction\n\n")
	prompt.WriteString("Extract proposed changes to the project's requirements model from the text below.\n")
	prompt.WriteString(fmt.Sprintf("The text comes from a %s-authority source.\n\n", authority))

	prompt.WriteString("## Current Entity Inventory\n\n")
	if extractionCtx.EntityInventory != "" {
		prompt.WriteString(extractionCtx.EntityInventory)
		prompt.WriteString("\n\n")
	} else {
		prompt.WriteString("(no entities yet)\n\n")
	}

	prompt.WriteString("## Current Beliefs\n\n")
	if extractionCtx.Memory != "" {
		prompt.WriteString(extractionCtx.Memory)
		prompt.WriteString("\n\n")
	} else {
		prompt.WriteString("(no standing beliefs)\n\n")
	}

	prompt.WriteString("## Known Gaps\n\n")
	if extractionCtx.Gaps != "" {
		prompt.WriteString(extractionCtx.Gaps)
		prompt.WriteString("\n\n")
	} else {
		prompt.WriteString("(no open questions)\n\n")
	}

	prompt.WriteString(fmt.Sprintf("## Signal Text (chunk %s)\n\n", chunkID))
	prompt.WriteString(chunkText)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Extraction Rules\n\n")
	prompt.WriteString("- Entity types: ")
	for i, t := range models.AllEntityTypes {
		if i > 0 {
			prompt.WriteString(", ")
		}
		prompt.WriteString(string(t))
	}
	prompt.WriteString("\n")
	prompt.WriteString("- Operations: \"create\" for facts not in the inventory; \"update\", \"merge\", \"stale\", or \"delete\" with the entity's id from the inventory when the text changes a known entity.\n")
	prompt.WriteString("- Confidence tiers: \"low\", \"medium\", \"high\", \"very_high\". Use \"high\" or above only when the text states the fact directly.\n")
	prompt.WriteString("- Every patch needs at least one evidence entry quoting the source text verbatim.\n")
	prompt.WriteString(fmt.Sprintf("- Use %q as the chunk_id for every evidence entry.\n", chunkID))
	prompt.WriteString("- mention_count is how many independent times the fact appears in THIS chunk.\n")
	prompt.WriteString("- Do not invent facts. If the text proposes nothing, return an empty array.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON: an array of patch objects.\n\n")
	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`[
  {
    "operation": "create",
    "entity_type": "feature",
    "payload": {
      "name": "Single Sign-On",
      "description": "SSO login for enterprise clients"
    },
    "evidence": [
      {
        "chunk_id": "chunk-1",
        "quote": "The system must support SSO for enterprise clients",
        "page_or_section": "Authentication"
      }
    ],
    "confidence": "high",
    "confidence_reasoning": "Stated directly as a requirement",
    "mention_count": 1
  }
]
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON array, no additional text.\n")

	return prompt.String()
}

// BuildExtractionSystemMessage returns the system message for extraction calls.
func BuildExtractionSystemMessage() string {
	return `You are a requirements analyst. You read raw project signals (documents, chat, meeting notes, prototype feedback) and extract precise, evidence-backed proposed changes to a structured requirements model. You never fabricate requirements and you prefer returning nothing over guessing.`
}
