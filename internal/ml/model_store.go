package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// ModelFileName is the single artifact kept in the model directory.
const ModelFileName = "best_model.gob"

const snapshotVersion = 1

// ModelMetadata describes the persisted pipeline.
type ModelMetadata struct {
	RunID          string             `json:"run_id"`
	Kind           Kind               `json:"kind"`
	Name           string             `json:"name"`
	TrainedAt      time.Time          `json:"trained_at"`
	CVMean         float64            `json:"cv_mean"`
	CVStd          float64            `json:"cv_std"`
	EffectiveFolds int                `json:"effective_folds"`
	Examples       int                `json:"examples"`
	ClassCounts    [dga.NumLabels]int `json:"class_counts"`
}

// MetadataFromResult builds the metadata stored alongside a trained pipeline.
func MetadataFromResult(res *TrainingResult) ModelMetadata {
	best := res.BestScore()
	return ModelMetadata{
		RunID:          res.RunID,
		Kind:           res.Best,
		Name:           res.BestName,
		TrainedAt:      res.TrainedAt,
		CVMean:         best.Mean,
		CVStd:          best.Std,
		EffectiveFolds: res.EffectiveFolds,
		Examples:       res.Examples,
		ClassCounts:    res.ClassCounts,
	}
}

// modelSnapshot is the gob payload. Exactly one model field is set,
// selected by Kind.
type modelSnapshot struct {
	Version  int
	Metadata ModelMetadata
	Kind     Kind
	Scaler   StandardScaler
	Forest   *RandomForest
	SVM      *KernelSVM
	KNN      *KNearest
	MLP      *NeuralNet
}

func snapshotOf(p *Pipeline, meta ModelMetadata) (*modelSnapshot, error) {
	snap := &modelSnapshot{Version: snapshotVersion, Metadata: meta, Kind: p.Kind, Scaler: *p.Scaler}
	switch m := p.Model.(type) {
	case *RandomForest:
		snap.Forest = m
	case *KernelSVM:
		snap.SVM = m
	case *KNearest:
		snap.KNN = m
	case *NeuralNet:
		snap.MLP = m
	default:
		return nil, fmt.Errorf("cannot persist model of type %T", p.Model)
	}
	return snap, nil
}

func (s *modelSnapshot) pipeline() (*Pipeline, error) {
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	var model Classifier
	switch {
	case s.Kind == KindRandomForest && s.Forest != nil:
		model = s.Forest
	case s.Kind == KindKernelSVM && s.SVM != nil:
		model = s.SVM
	case s.Kind == KindKNN && s.KNN != nil:
		model = s.KNN
	case s.Kind == KindMLP && s.MLP != nil:
		model = s.MLP
	default:
		return nil, fmt.Errorf("snapshot has no model for kind %s", s.Kind)
	}
	scaler := s.Scaler
	if len(scaler.Mean) != dga.NumGases || len(scaler.Scale) != dga.NumGases {
		return nil, fmt.Errorf("snapshot scaler has %d features, want %d", len(scaler.Mean), dga.NumGases)
	}
	return &Pipeline{Kind: s.Kind, Scaler: &scaler, Model: model}, nil
}

// ModelStore persists the best pipeline as a single file. Writes go to a
// temporary file that is synced and renamed over the artifact, so readers
// see either the old or the new model.
type ModelStore struct {
	dir string
	mu  sync.Mutex

	cacheMu sync.Mutex
	cached  *cachedMetadata
}

// cachedMetadata is valid while the artifact keeps the same size and mtime.
type cachedMetadata struct {
	size    int64
	modTime time.Time
	meta    ModelMetadata
}

func (c *cachedMetadata) matches(info fs.FileInfo) bool {
	return c != nil && c.size == info.Size() && c.modTime.Equal(info.ModTime())
}

// NewModelStore creates the model directory if needed.
func NewModelStore(dir string) (*ModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	return &ModelStore{dir: dir}, nil
}

// Path returns the artifact location.
func (s *ModelStore) Path() string {
	return filepath.Join(s.dir, ModelFileName)
}

// Exists reports whether an artifact is present.
func (s *ModelStore) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && info.Mode().IsRegular()
}

// Save replaces the artifact with p.
func (s *ModelStore) Save(p *Pipeline, meta ModelMetadata) error {
	snap, err := snapshotOf(p, meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ModelFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		cleanup()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace model file: %w", err)
	}
	s.remember(meta)

	log.Info().
		Str("path", s.Path()).
		Str("model.name", meta.Name).
		Str("run_id", meta.RunID).
		Msg("Model saved")
	return nil
}

// Load reads the artifact. Missing or undecodable files yield a
// *dga.ModelLoadError; a missing file also matches fs.ErrNotExist.
func (s *ModelStore) Load() (*Pipeline, ModelMetadata, error) {
	path := s.Path()
	f, err := os.Open(path)
	if err != nil {
		return nil, ModelMetadata{}, &dga.ModelLoadError{Path: path, Err: err}
	}
	defer f.Close()

	var snap modelSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, ModelMetadata{}, &dga.ModelLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	p, err := snap.pipeline()
	if err != nil {
		return nil, ModelMetadata{}, &dga.ModelLoadError{Path: path, Err: err}
	}
	if info, err := f.Stat(); err == nil {
		s.cache(info, snap.Metadata)
	}
	return p, snap.Metadata, nil
}

// Metadata returns the artifact's metadata, decoding the file only when it
// changed since the last Save, Load or Metadata call.
func (s *ModelStore) Metadata() (ModelMetadata, error) {
	info, err := os.Stat(s.Path())
	if err != nil {
		s.cacheMu.Lock()
		s.cached = nil
		s.cacheMu.Unlock()
		return ModelMetadata{}, &dga.ModelLoadError{Path: s.Path(), Err: err}
	}
	s.cacheMu.Lock()
	c := s.cached
	s.cacheMu.Unlock()
	if c.matches(info) {
		return c.meta, nil
	}
	_, meta, err := s.Load()
	return meta, err
}

func (s *ModelStore) remember(meta ModelMetadata) {
	if info, err := os.Stat(s.Path()); err == nil {
		s.cache(info, meta)
	}
}

func (s *ModelStore) cache(info fs.FileInfo, meta ModelMetadata) {
	s.cacheMu.Lock()
	s.cached = &cachedMetadata{size: info.Size(), modTime: info.ModTime(), meta: meta}
	s.cacheMu.Unlock()
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
