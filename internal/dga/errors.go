package dga

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGasValue marks a negative or non-finite concentration.
	ErrInvalidGasValue = errors.New("invalid gas value")

	// ErrInsufficientData is matched by every *InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelNotTrained is returned when no model is resident and none is stored.
	ErrModelNotTrained = errors.New("no trained model available; run training first")

	// ErrModelLoad is matched by every *ModelLoadError.
	ErrModelLoad = errors.New("model load failed")

	// ErrNoVotes is returned by the labeler when every normative method failed.
	ErrNoVotes = errors.New("no normative method produced a verdict")
)

// InsufficientDataError reports why a dataset cannot be used for training or
// cross-validation. Fields that do not apply are left zero.
type InsufficientDataError struct {
	Reason         string
	Examples       int
	Classes        int
	RequestedFolds int
	EffectiveFolds int
	// Label is the class that limited the fold count, when relevant.
	Label *FaultLabel
}

func (e *InsufficientDataError) Error() string {
	var b strings.Builder
	b.WriteString("insufficient data: ")
	b.WriteString(e.Reason)
	fmt.Fprintf(&b, " (examples=%d, classes=%d", e.Examples, e.Classes)
	if e.RequestedFolds > 0 {
		fmt.Fprintf(&b, ", requested_folds=%d, effective_folds=%d", e.RequestedFolds, e.EffectiveFolds)
	}
	if e.Label != nil {
		fmt.Fprintf(&b, ", class=%s", e.Label.String())
	}
	b.WriteString(")")
	return b.String()
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ModelLoadError wraps a missing or corrupted model artifact.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}
