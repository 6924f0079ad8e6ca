// Package inference talks to the model server that transcribes images and answers questions.
package inference

import (
	"context"
	"fmt"
	"strings"
)

// Extractor turns image bytes into text following an instruction.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte, instruction string) (string, error)
}

// Chatter answers a single user message under a system instruction.
type Chatter interface {
	Chat(ctx context.Context, systemInstruction, userMessage string) (string, error)
}

// OCRInstruction is sent with every image to the vision model.
const OCRInstruction = `Analyze the text in the provided image and extract all readable content *exactly as it appears*.
Return the text in a structured Markdown format, preserving the original language (e.g., French), layout, and intent.
Use headings, lists, tables, or code blocks as needed to reflect the source's organization.`

// GroundingSystemPrompt fixes the assistant to the extracted text.
const GroundingSystemPrompt = "You are a helpful assistant answering questions based *only* on the provided text context."

const groundedPromptTemplate = `Based *only* on the following text extracted from an image, please answer the user's question.
Do not use any external knowledge. If the answer cannot be found in the text, say so.

Extracted Text Context:
---
%s
---

User Question: %s`

// BuildGroundedPrompt embeds the extracted text and the question into the user message.
func BuildGroundedPrompt(extractedText, question string) string {
	return fmt.Sprintf(groundedPromptTemplate, strings.TrimSpace(extractedText), strings.TrimSpace(question))
}
