// Package llm adapts Google's Gemini models into the engine's extraction oracle.
package llm

import (
	"context"
	"os"
	"quarterly_metrics/pkg/core/config"
	"quarterly_metrics/pkg/models"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var ErrNoAPIKey = eris.New("GEMINI_API_KEY is not set")

// GeminiOracle sends each report PDF inline with ExtractionPrompt and parses the JSON reply.
// Requests are paced client-side to stay within the configured per-minute quota.
type GeminiOracle struct {
	client   *genai.Client
	model    string
	limiter  *rate.Limiter
	readFile func(string) ([]byte, error)
	log      zerolog.Logger
}

// NewGeminiOracle creates the GenAI client. cfg.APIKey must be set.
func NewGeminiOracle(ctx context.Context, cfg config.Gemini, log zerolog.Logger) (*GeminiOracle, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to create GenAI client")
	}
	return &GeminiOracle{
		client:   client,
		model:    cfg.Model,
		limiter:  newLimiter(cfg.RequestsPerMinute),
		readFile: os.ReadFile,
		log:      log.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// Extract implements pipeline.Oracle.
func (o *GeminiOracle) Extract(ctx context.Context, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
	pdf, err := o.readFile(doc.Handle)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", doc.Handle)
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter")
	}

	start := time.Now()
	result, err := o.client.Models.GenerateContent(ctx, o.model,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: pdf, MIMEType: "application/pdf"}},
				{Text: ExtractionPrompt},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, eris.Wrap(err, "gemini generation failed")
	}

	text := result.Text()
	o.log.Debug().
		Str("document_id", doc.DocumentID).
		Int("bytes", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("oracle replied")

	records, err := ParseResponse(text, doc)
	if err != nil {
		return nil, eris.Wrapf(err, "document %s", doc.DocumentID)
	}
	return records, nil
}
