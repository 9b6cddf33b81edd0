package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

// Parser turns extracted resume text into structured sections.
type Parser interface {
	Parse(ctx context.Context, text string) (*models.ParseResult, error)
}

const (
	parseTextPath = "/parse-resume-text"
	healthPath    = "/health"
)

type ParserClient struct {
	client *resty.Client
}

// NewParserClient talks to the resume parsing service at baseURL. The
// client never retries; a failed call is final for that record.
func NewParserClient(baseURL string, timeout time.Duration) *ParserClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ParserClient{client: client}
}

// Parse implements Parser.
func (p *ParserClient) Parse(ctx context.Context, text string) (*models.ParseResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(parseTextPath)
	if err != nil {
		return nil, apperror.Remote("failed to call parsing service", err)
	}

	if resp.StatusCode()/100 != 2 {
		return nil, apperror.Remote(
			"parsing service returned an error",
			fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 512)),
		)
	}

	return decodeParseResponse(resp.Body())
}

func (p *ParserClient) Name() string {
	return "parser"
}

// Check pings the parsing service health endpoint.
func (p *ParserClient) Check(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get(healthPath)
	if err != nil {
		return fmt.Errorf("parsing service unreachable: %w", err)
	}
	if resp.StatusCode()/100 != 2 {
		return fmt.Errorf("parsing service unhealthy: status %d", resp.StatusCode())
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
