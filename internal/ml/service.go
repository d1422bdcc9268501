package ml

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/normative"
)

// DefaultFolds is used when a caller passes a non-positive fold count.
const DefaultFolds = 5

// ServiceConfig wires the facade.
type ServiceConfig struct {
	Config
	ModelDir     string
	DefaultFolds int
}

// ModelInfo describes the model the classifier would use.
type ModelInfo struct {
	Available bool           `json:"available"`
	State     ModelState     `json:"state"`
	Path      string         `json:"path"`
	Metadata  *ModelMetadata `json:"metadata,omitempty"`
}

// Service is the single entry point for data preparation, training,
// evaluation and classification.
type Service struct {
	builder    *DatasetBuilder
	trainer    *Trainer
	evaluator  *Evaluator
	store      *ModelStore
	classifier *FaultClassifier
	folds      int

	// trainMu admits one training job at a time.
	trainMu sync.Mutex
}

// NewService builds every component from cfg.
func NewService(source SampleSource, rules normative.Service, cfg ServiceConfig, metrics MetricsInterface) (*Service, error) {
	if err := cfg.Hyperparameters.Validate(); err != nil {
		return nil, err
	}
	store, err := NewModelStore(cfg.ModelDir)
	if err != nil {
		return nil, err
	}
	folds := cfg.DefaultFolds
	if folds <= 0 {
		folds = DefaultFolds
	}
	labeler := NewConsensusLabeler(rules, metrics)
	return &Service{
		builder:    NewDatasetBuilder(source, labeler, cfg.Workers, metrics),
		trainer:    NewTrainer(cfg.Config, metrics),
		evaluator:  NewEvaluator(cfg.Config, metrics),
		store:      store,
		classifier: NewFaultClassifier(store, metrics),
		folds:      folds,
	}, nil
}

func (s *Service) resolveFolds(n int) int {
	if n <= 0 {
		return s.folds
	}
	return n
}

// PrepareData builds the dataset and reports its shape.
func (s *Service) PrepareData(ctx context.Context) (DatasetSummary, error) {
	ds, err := s.builder.Build(ctx)
	if err != nil {
		if ds != nil {
			return ds.Summary(), err
		}
		return DatasetSummary{}, err
	}
	return ds.Summary(), nil
}

// Train builds a fresh dataset, selects the best candidate, persists it and
// makes it the resident model.
func (s *Service) Train(ctx context.Context, nFolds int) (*TrainingResult, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	ds, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	res, pipe, err := s.trainer.Train(ctx, ds, s.resolveFolds(nFolds))
	if err != nil {
		return nil, err
	}
	meta := MetadataFromResult(res)
	if err := s.store.Save(pipe, meta); err != nil {
		return nil, err
	}
	s.classifier.Set(pipe, meta)
	return res, nil
}

// EvaluateAll cross-validates every candidate with the default fold count.
func (s *Service) EvaluateAll(ctx context.Context) ([]EvaluationResult, error) {
	return s.EvaluateAllFolds(ctx, 0)
}

// EvaluateAllFolds is EvaluateAll with an explicit fold count.
func (s *Service) EvaluateAllFolds(ctx context.Context, nFolds int) ([]EvaluationResult, error) {
	ds, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	return s.evaluator.EvaluateAll(ctx, ds, s.resolveFolds(nFolds))
}

// FeatureImportance computes permutation importance for one candidate.
func (s *Service) FeatureImportance(ctx context.Context, kind Kind) ([]FeatureScore, error) {
	ds, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	return s.evaluator.FeatureImportance(ctx, ds, kind, s.folds)
}

func (s *Service) Classify(ctx context.Context, reading dga.GasReading) (dga.FaultLabel, error) {
	return s.classifier.Classify(ctx, reading)
}

func (s *Service) ClassifyWithProba(ctx context.Context, reading dga.GasReading) (Prediction, error) {
	return s.classifier.ClassifyWithProbabilities(ctx, reading)
}

func (s *Service) ClassifyBatch(ctx context.Context, readings []dga.GasReading) ([]dga.FaultLabel, error) {
	return s.classifier.ClassifyBatch(ctx, readings)
}

func (s *Service) HasModel() bool {
	return s.classifier.HasModel()
}

// LoadModel reloads the persisted model into memory.
func (s *Service) LoadModel() error {
	if err := s.classifier.Load(); err != nil {
		log.Warn().Err(err).Str("path", s.store.Path()).Msg("Model load failed")
		return err
	}
	return nil
}

// ModelInfo reports the resident model, falling back to what is stored.
func (s *Service) ModelInfo() ModelInfo {
	info := ModelInfo{
		Available: s.classifier.HasModel(),
		State:     s.classifier.State(),
		Path:      s.store.Path(),
	}
	if meta, ok := s.classifier.Metadata(); ok {
		info.Metadata = &meta
	} else if meta, err := s.store.Metadata(); err == nil {
		info.Metadata = &meta
	}
	return info
}
