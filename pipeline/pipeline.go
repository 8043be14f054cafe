package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/mythic-to-moxfield/loader"
	"github.com/aluiziolira/mythic-to-moxfield/lookup"
	"github.com/aluiziolira/mythic-to-moxfield/models"
	"github.com/aluiziolira/mythic-to-moxfield/transform"
)

// Resolver resolves a printed card name to its canonical English name. A
// name that cannot be resolved is reported as *lookup.MissError.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Pipeline enriches records one at a time, pausing for a fixed delay after
// every record so the lookup service is never hit faster than its limit.
type Pipeline struct {
	resolver Resolver
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	metrics metrics
}

// NewPipeline builds a sequential pipeline around resolver.
func NewPipeline(resolver Resolver, delay time.Duration) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		delay:    delay,
		sleep:    wait,
		metrics:  newMetrics(),
	}
}

// Convert loads the export at input, enriches every record and writes the
// resolved rows to output. Nothing is written if loading or enrichment fails.
func (p *Pipeline) Convert(ctx context.Context, input, output string) (*models.ConversionResult, error) {
	records, err := loader.Load(input)
	if err != nil {
		return nil, err
	}
	slog.Info("export loaded", slog.String("path", input), slog.Int("records", len(records)))

	result, err := p.Run(ctx, records)
	if err != nil {
		return result, err
	}

	if err := WriteCSV(output, result.Records); err != nil {
		return result, err
	}
	return result, nil
}

// Run resolves records in order. Records whose name cannot be resolved are
// listed in Unresolved and left out of Records; every other error aborts the
// run and is returned with the partial result.
func (p *Pipeline) Run(ctx context.Context, records []*models.SourceRecord) (*models.ConversionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ConversionResult{
		Records:        make([]*models.OutputRecord, 0, len(records)),
		MissesByReason: make(map[string]int),
		StartTime:      time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
	}()

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name, err := p.resolver.Resolve(ctx, record.CardName)
		var miss *lookup.MissError
		switch {
		case err == nil:
			result.Records = append(result.Records, transform.Transform(record, name))
			p.metrics.incrementResolved()
		case errors.As(err, &miss):
			reason := miss.Reason()
			result.Unresolved = append(result.Unresolved, record.CardName)
			result.MissesByReason[reason]++
			p.metrics.addMiss(reason)
			slog.Warn("card not resolved",
				slog.String("card_name", record.CardName),
				slog.String("reason", reason),
				slog.Any("error", err),
			)
		default:
			return result, fmt.Errorf("resolve %q: %w", record.CardName, err)
		}

		result.Processed++
		if result.Processed%50 == 0 {
			slog.Debug("enrichment progress",
				slog.Int("processed", result.Processed),
				slog.Int("total", len(records)),
				slog.Int("unresolved", len(result.Unresolved)),
			)
		}

		if err := p.sleep(ctx, p.delay); err != nil {
			return result, err
		}
	}

	return result, nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type metrics struct {
	mu       sync.Mutex
	resolved int64
	misses   map[string]int
}

func newMetrics() metrics {
	return metrics{
		misses: make(map[string]int),
	}
}

func (m *metrics) incrementResolved() {
	m.mu.Lock()
	m.resolved++
	m.mu.Unlock()
}

func (m *metrics) addMiss(kind string) {
	m.mu.Lock()
	m.misses[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyMisses := make(map[string]int, len(m.misses))
	for k, v := range m.misses {
		copyMisses[k] = v
	}

	return map[string]interface{}{
		"resolved_cards": m.resolved,
		"misses":         copyMisses,
	}
}
