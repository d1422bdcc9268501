// Package storage provides persistent storage for historical DGA samples.
// It uses BoltDB as the underlying storage engine. Samples are keyed by
// transformer and extraction time so range scans per transformer are cheap,
// and a secondary bucket indexes sample codes to keep them unique.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"dga-engine/internal/dga"
)

const (
	samplesBucket = "samples" // Bucket name for sample records
	codesBucket   = "codes"   // Bucket name for the code -> sample key index
)

// ErrDuplicateSample is returned when a sample code is already stored.
var ErrDuplicateSample = errors.New("sample code already exists")

// Store provides persistent storage for DGA samples using BoltDB.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, "dga-samples.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(samplesBucket)); err != nil {
			return fmt.Errorf("create samples bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(codesBucket)); err != nil {
			return fmt.Errorf("create codes bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func sampleKey(transformerID string, ts time.Time, code string) []byte {
	return []byte(fmt.Sprintf("%s_%019d_%s", transformerID, ts.UnixNano(), code))
}

// StoreSample validates and appends one sample.
func (s *Store) StoreSample(sample dga.Sample) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx, sample)
	})
}

// StoreSamples appends samples in a single transaction; either all are
// stored or none.
func (s *Store) StoreSamples(samples []dga.Sample) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, sample := range samples {
			if err := s.put(tx, sample); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) put(tx *bbolt.Tx, sample dga.Sample) error {
	if err := sample.Validate(s.now()); err != nil {
		return err
	}
	codes := tx.Bucket([]byte(codesBucket))
	if codes.Get([]byte(sample.Code)) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSample, sample.Code)
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	key := sampleKey(sample.TransformerID, sample.ExtractionDate, sample.Code)
	if err := tx.Bucket([]byte(samplesBucket)).Put(key, data); err != nil {
		return err
	}
	return codes.Put([]byte(sample.Code), key)
}

// ListSamples returns every stored sample ordered by transformer and
// extraction time.
func (s *Store) ListSamples(ctx context.Context) ([]dga.Sample, error) {
	var samples []dga.Sample
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(samplesBucket)).ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sample dga.Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				return nil // Skip malformed records
			}
			samples = append(samples, sample)
			return nil
		})
	})
	return samples, err
}

// GetSample looks a sample up by code. The boolean is false when absent.
func (s *Store) GetSample(code string) (dga.Sample, bool, error) {
	var sample dga.Sample
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(codesBucket)).Get([]byte(code))
		if key == nil {
			return nil
		}
		v := tx.Bucket([]byte(samplesBucket)).Get(key)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &sample)
	})
	return sample, found, err
}

// GetSamplesInRange retrieves samples of one transformer whose extraction
// date falls within [start, end], ordered by date.
func (s *Store) GetSamplesInRange(transformerID string, start, end time.Time) ([]dga.Sample, error) {
	var samples []dga.Sample

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(samplesBucket)).Cursor()

		prefix := []byte(transformerID + "_")
		startKey := []byte(fmt.Sprintf("%s_%019d", transformerID, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%019d_\xff", transformerID, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var sample dga.Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				continue // Skip malformed records
			}
			samples = append(samples, sample)
		}
		return nil
	})

	return samples, err
}

// Transformers returns the distinct transformer references in key order.
func (s *Store) Transformers() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(samplesBucket)).ForEach(func(_, v []byte) error {
			var sample dga.Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				return nil
			}
			if len(ids) == 0 || ids[len(ids)-1] != sample.TransformerID {
				ids = append(ids, sample.TransformerID)
			}
			return nil
		})
	})
	return ids, err
}

// Count returns the number of stored samples.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(samplesBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
