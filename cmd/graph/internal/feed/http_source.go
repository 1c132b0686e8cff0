package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

const httpTimeout = 5 * time.Second

// HTTPSource polls a quote endpoint that answers with a JSON array of quotes.
type HTTPSource struct {
	client   *resty.Client
	url      string
	interval time.Duration
	logger   *zap.Logger
}

func NewHTTPSource(url string, interval time.Duration, logger *zap.Logger) *HTTPSource {
	client := resty.New().
		SetTimeout(httpTimeout).
		SetHeader("Accept", "application/json")

	return &HTTPSource{
		client:   client,
		url:      url,
		interval: interval,
		logger:   logger,
	}
}

func (s *HTTPSource) Run(ctx context.Context, emit Emit) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			batch, err := s.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("Quote poll failed", zap.String("url", s.url), zap.Error(err))
				continue
			}
			if len(batch) > 0 {
				emit(batch)
			}
		}
	}
}

// Poll fetches one batch. Quotes that fail to decode are skipped.
func (s *HTTPSource) Poll(ctx context.Context) ([]models.QuoteRecord, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote endpoint returned %s", resp.Status())
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decode quote list: %w", err)
	}

	batch := make([]models.QuoteRecord, 0, len(raw))
	for _, item := range raw {
		if q, ok := decodeQuote(item, s.logger); ok {
			batch = append(batch, q)
		}
	}
	return batch, nil
}
