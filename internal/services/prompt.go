package services

import "fmt"

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildResumeParsePrompt asks the model for the same document the parsing
// service returns from /parse-resume-text.
func (pb *PromptBuilder) BuildResumeParsePrompt(resumeText string) string {
	return fmt.Sprintf(`You are a resume parser. Read the resume below and extract its structured content.

RESUME:
%s

Return ONLY a JSON object with exactly these keys:
{
  "skills": [{"name": "<skill>", "category": "<programming|databases|cloud|tools|soft_skills|other>"}],
  "education": [{"degree": "<degree>", "institution": "<school>", "year": "<year or range>"}],
  "experience": [{"title": "<job title>", "company": "<company>", "duration": "<dates>", "description": "<summary>"}]
}

Use an empty list for any section the resume does not contain. Do not invent entries.`,
		resumeText)
}
