// Package enrich generates editorial narrative for a place and degrades to
// a templated description whenever generation fails.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/resilience"
	"github.com/sells-group/place-import/pkg/anthropic"
)

const (
	maxReviews     = 5
	maxReviewChars = 400
)

// Config controls generation.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Service produces narrative enrichment for place details.
type Service struct {
	client anthropic.Client
	gate   *resilience.Gate
	cfg    Config
	now    func() time.Time
}

// NewService creates a Service. Calls go through gate.
func NewService(client anthropic.Client, gate *resilience.Gate, cfg Config) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Service{
		client: client,
		gate:   gate,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type generated struct {
	Description string `json:"description"`
	Handle      string `json:"handle"`
}

// Enrich returns generated narrative for d. It never fails: any error is
// logged and replaced with a templated description.
func (s *Service) Enrich(ctx context.Context, d *model.PlaceDetail, category model.Category) *model.Enrichment {
	log := zap.L().With(zap.String("place_id", d.PlaceID), zap.String("category", string(category)))

	out, err := s.generate(ctx, d, category)
	if err != nil {
		log.Warn("enrich: using fallback description", zap.Error(err))
		return &model.Enrichment{
			Description: Fallback(d.Name, d.Address),
			Category:    category,
			Source:      model.EnrichmentSourceFallback,
			GeneratedAt: s.now(),
		}
	}

	log.Debug("enrich: description generated", zap.Int("chars", len(out.Description)))
	return &model.Enrichment{
		Description: strings.TrimSpace(out.Description),
		Handle:      strings.TrimPrefix(strings.TrimSpace(out.Handle), "@"),
		Category:    category,
		Source:      model.EnrichmentSourceAI,
		GeneratedAt: s.now(),
	}
}

func (s *Service) generate(ctx context.Context, d *model.PlaceDetail, category model.Category) (*generated, error) {
	temp := s.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(d, category)}},
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, s.gate, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: generate")
	}
	resp.Usage.Log(resp.Model, "enrich")

	raw := extractObject(resp.Text())
	if raw == "" {
		return nil, eris.New("enrich: no json object in response")
	}
	var out generated
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "enrich: decode response")
	}
	if strings.TrimSpace(out.Description) == "" {
		return nil, eris.New("enrich: empty description")
	}
	return &out, nil
}

// Fallback builds a deterministic description from name and address.
func Fallback(name, address string) string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	switch {
	case name == "" && address == "":
		return "A local favorite."
	case address == "":
		return fmt.Sprintf("%s is a local favorite.", name)
	case name == "":
		return fmt.Sprintf("A local favorite at %s.", address)
	default:
		return fmt.Sprintf("%s is a local favorite at %s.", name, address)
	}
}
