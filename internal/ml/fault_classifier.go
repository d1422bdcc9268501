package ml

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// ModelState tracks the resident model's lifecycle.
type ModelState int

const (
	ModelAbsent ModelState = iota
	ModelLoaded
	ModelReloaded
)

func (s ModelState) String() string {
	switch s {
	case ModelLoaded:
		return "loaded"
	case ModelReloaded:
		return "reloaded"
	}
	return "absent"
}

func (s ModelState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ModelState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "absent":
		*s = ModelAbsent
	case "loaded":
		*s = ModelLoaded
	case "reloaded":
		*s = ModelReloaded
	default:
		return fmt.Errorf("unknown model state %q", b)
	}
	return nil
}

// Prediction is a label with the full per-class probability distribution.
type Prediction struct {
	Label         dga.FaultLabel             `json:"label"`
	Confidence    float64                    `json:"confidence"`
	Probabilities map[dga.FaultLabel]float64 `json:"probabilities"`
}

// FaultClassifier serves predictions from the resident pipeline, loading it
// from the store on first use.
type FaultClassifier struct {
	mu       sync.RWMutex
	store    *ModelStore
	pipeline *Pipeline
	meta     ModelMetadata
	state    ModelState
	metrics  MetricsInterface
}

func NewFaultClassifier(store *ModelStore, metrics MetricsInterface) *FaultClassifier {
	return &FaultClassifier{store: store, metrics: orNoop(metrics)}
}

// State returns the lifecycle state.
func (c *FaultClassifier) State() ModelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Metadata returns the resident model's metadata. The boolean is false when
// nothing is resident.
func (c *FaultClassifier) Metadata() (ModelMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta, c.pipeline != nil
}

// HasModel reports whether a model is resident or stored.
func (c *FaultClassifier) HasModel() bool {
	c.mu.RLock()
	resident := c.pipeline != nil
	c.mu.RUnlock()
	return resident || (c.store != nil && c.store.Exists())
}

// Set installs a freshly trained pipeline.
func (c *FaultClassifier) Set(p *Pipeline, meta ModelMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.install(p, meta)
}

func (c *FaultClassifier) install(p *Pipeline, meta ModelMetadata) {
	if c.pipeline == nil {
		c.state = ModelLoaded
	} else {
		c.state = ModelReloaded
	}
	c.pipeline, c.meta = p, meta
}

// Load (re)reads the model from the store.
func (c *FaultClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *FaultClassifier) loadLocked() error {
	if c.store == nil {
		return dga.ErrModelNotTrained
	}
	p, meta, err := c.store.Load()
	if err != nil {
		if isNotExist(err) {
			return fmt.Errorf("%w: %w", dga.ErrModelNotTrained, err)
		}
		c.metrics.ModelLoadFailuresInc()
		return err
	}
	c.install(p, meta)
	c.metrics.ModelLoadsInc()
	log.Info().
		Str("model.name", meta.Name).
		Str("run_id", meta.RunID).
		Str("state", c.state.String()).
		Msg("Model loaded")
	return nil
}

// resident returns the pipeline, loading it lazily.
func (c *FaultClassifier) resident() (*Pipeline, error) {
	c.mu.RLock()
	p := c.pipeline
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline == nil {
		if err := c.loadLocked(); err != nil {
			return nil, err
		}
	}
	return c.pipeline, nil
}

// Classify returns the most probable fault label.
func (c *FaultClassifier) Classify(ctx context.Context, reading dga.GasReading) (dga.FaultLabel, error) {
	labels, err := c.ClassifyBatch(ctx, []dga.GasReading{reading})
	if err != nil {
		return 0, err
	}
	return labels[0], nil
}

// ClassifyWithProbabilities returns the label and all nine class
// probabilities. Ties in the argmax go to the lowest class index.
func (c *FaultClassifier) ClassifyWithProbabilities(ctx context.Context, reading dga.GasReading) (Prediction, error) {
	start := time.Now()
	if err := c.check(ctx, []dga.GasReading{reading}); err != nil {
		return Prediction{}, err
	}
	p, err := c.resident()
	if err != nil {
		c.metrics.ClassificationFailuresInc()
		return Prediction{}, err
	}

	row := normalise(p.PredictProba([][]float64{reading.Features()})[0])
	best := argmax(row)
	pred := Prediction{
		Label:         dga.FaultLabel(best),
		Confidence:    row[best],
		Probabilities: make(map[dga.FaultLabel]float64, dga.NumLabels),
	}
	for i, v := range row {
		pred.Probabilities[dga.FaultLabel(i)] = v
	}
	c.metrics.ClassificationsInc(pred.Label.String())
	c.metrics.ClassificationLatencyObserve(time.Since(start).Seconds())
	return pred, nil
}

// ClassifyBatch classifies readings in one pass, preserving order.
func (c *FaultClassifier) ClassifyBatch(ctx context.Context, readings []dga.GasReading) ([]dga.FaultLabel, error) {
	start := time.Now()
	if len(readings) == 0 {
		return []dga.FaultLabel{}, nil
	}
	if err := c.check(ctx, readings); err != nil {
		return nil, err
	}
	p, err := c.resident()
	if err != nil {
		c.metrics.ClassificationFailuresInc()
		return nil, err
	}

	x := make([][]float64, len(readings))
	for i, r := range readings {
		x[i] = r.Features()
	}
	idx := p.Predict(x)
	out := make([]dga.FaultLabel, len(idx))
	for i, v := range idx {
		out[i] = dga.FaultLabel(v)
		c.metrics.ClassificationsInc(out[i].String())
	}
	c.metrics.ClassificationLatencyObserve(time.Since(start).Seconds())
	return out, nil
}

func (c *FaultClassifier) check(ctx context.Context, readings []dga.GasReading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, r := range readings {
		if err := r.Validate(); err != nil {
			c.metrics.ClassificationFailuresInc()
			if len(readings) > 1 {
				return fmt.Errorf("reading %d: %w", i, err)
			}
			return err
		}
	}
	return nil
}

// normalise rescales v to sum to one; an all-zero row becomes uniform.
func normalise(v []float64) []float64 {
	var z float64
	for _, x := range v {
		if !math.IsNaN(x) && x > 0 {
			z += x
		}
	}
	out := make([]float64, len(v))
	for i, x := range v {
		switch {
		case z == 0:
			out[i] = 1 / float64(len(v))
		case math.IsNaN(x) || x < 0:
			out[i] = 0
		default:
			out[i] = x / z
		}
	}
	return out
}
