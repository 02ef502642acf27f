package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-paper-trader/internal/trading/config"
	"golang-paper-trader/internal/trading/dto"
	"golang-paper-trader/pkg/breaker"
	"golang-paper-trader/pkg/logger"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// VerdictRepository generates trade verdicts from an external reasoning
// service. The verdict is untrusted input; callers get it back only after
// boundary validation.
type VerdictRepository interface {
	GenerateVerdict(ctx context.Context, bundle *dto.ContextBundle) (*dto.Verdict, error)
}

// geminiVerdictRepository is a VerdictRepository backed by the Gemini API.
type geminiVerdictRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	genAiClient    *genai.Client
	requestLimiter *rate.Limiter
	breaker        *breaker.Breaker
}

// NewGeminiVerdictRepository creates a new Gemini-backed verdict repository.
func NewGeminiVerdictRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (VerdictRepository, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &geminiVerdictRepository{
		cfg:            cfg,
		log:            log,
		genAiClient:    genAiClient,
		requestLimiter: requestLimiter,
		breaker: breaker.New(breaker.Config{
			FailureThreshold: cfg.Gemini.BreakerThreshold,
			Cooldown:         cfg.Gemini.BreakerCooldown,
		}),
	}, nil
}

// GenerateVerdict asks the model for a verdict on one asset.
func (r *geminiVerdictRepository) GenerateVerdict(ctx context.Context, bundle *dto.ContextBundle) (*dto.Verdict, error) {
	prompt, err := BuildVerdictPrompt(bundle)
	if err != nil {
		return nil, err
	}

	var raw string
	err = r.breaker.Do(func() error {
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for request limit: %w", err)
		}

		contents := []*genai.Content{
			genai.NewContentFromText(prompt, "user"),
		}
		resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Gemini.Model, contents, nil)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %s", dto.ErrVerdictTimeout, bundle.Symbol)
			}
			return fmt.Errorf("verdict generation failed for %s: %w", bundle.Symbol, err)
		}
		raw = resp.Text()
		return nil
	})
	if err != nil {
		return nil, err
	}

	verdict, err := parseVerdictResponse(raw)
	if err != nil {
		r.log.Warn("Failed to parse verdict response",
			logger.StringField("symbol", bundle.Symbol),
			logger.StringField("response", raw),
			logger.ErrorField(err),
		)
		return nil, err
	}

	if err := verdict.Validate(); err != nil {
		return nil, err
	}
	return verdict, nil
}

// parseVerdictResponse extracts the verdict JSON from the model output,
// tolerating markdown code fences around it.
func parseVerdictResponse(raw string) (*dto.Verdict, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", dto.ErrVerdictInvalid)
	}

	var verdict dto.Verdict
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrVerdictInvalid, err)
	}
	return &verdict, nil
}
