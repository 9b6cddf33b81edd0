package services

import (
	"context"
	"log"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

type geminiParser struct {
	gemini        GeminiService
	promptBuilder *PromptBuilder
}

// NewGeminiParser parses resumes with a Gemini model instead of the
// parsing service. It makes a single attempt per call.
func NewGeminiParser(gemini GeminiService) Parser {
	return &geminiParser{
		gemini:        gemini,
		promptBuilder: NewPromptBuilder(),
	}
}

// Parse implements Parser.
func (p *geminiParser) Parse(ctx context.Context, text string) (*models.ParseResult, error) {
	prompt := p.promptBuilder.BuildResumeParsePrompt(text)
	log.Printf("📝 Resume parse prompt length: %d characters", len(prompt))

	response, err := p.gemini.GenerateJSON(ctx, prompt, 0.1)
	if err != nil {
		return nil, apperror.Remote("gemini parse failed", err)
	}

	return decodeParseResponse([]byte(extractJSON(response)))
}
