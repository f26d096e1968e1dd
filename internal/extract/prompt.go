package extract

import "fmt"

// Prompts holds the instructions sent to the completion service. They are
// injected so deployments can tune wording without touching the retry logic.
type Prompts struct {
	// System is the fixed extraction instruction.
	System string
	// Chunk formats the user message for a chunk; it receives the chunk text.
	Chunk string
	// Feedback formats the corrective message after an invalid answer; it receives the failure reason.
	Feedback string
}

func DefaultPrompts() Prompts {
	return Prompts{
		System:   defaultSystemPrompt,
		Chunk:    "Extract all line items from the following pages:\n%s",
		Feedback: "Your previous answer was rejected: %s. Answer again with only the corrected JSON object.",
	}
}

func (p Prompts) chunkMessage(chunkText string) string {
	return fmt.Sprintf(p.Chunk, chunkText)
}

func (p Prompts) feedbackMessage(reason string) string {
	return fmt.Sprintf(p.Feedback, reason)
}

const defaultSystemPrompt = `You extract line items (Positionen) from German construction tender documents (Leistungsverzeichnis).

Return a JSON object of the form:
{"items": [{"ref_no": "1.2.10", "description": "...", "quantity": 3, "unit": "Stk"}]}

Rules:
- ref_no is the position number exactly as printed (for example "01.02.0030" or "1.2.10").
- description contains the full item text including short and long text. Keep references such as "wie Pos. 10" or "wie Vorposition" verbatim.
- quantity is a number. Numbers use German formatting: "1.250,50" means 1250.5.
- unit is the unit as printed (Stk, m, m2, psch, h, ...).
- Pages are marked with "### PAGE n". Items may start on one page and continue on the next; extract each item once with its complete text.
- A supplement (Zulage) is its own item and is not a reference to another position.
- Headings, totals, cover letters and terms and conditions are not items.
- If the pages contain no items, return {"items": []}.
- Answer with the JSON object only.`
