// Package audit keeps a trail of generation requests.
package audit

import (
	"context"
	"errors"

	"docgen-workers/internal/models"
)

// Recorder persists one generation record.
type Recorder interface {
	Record(ctx context.Context, rec models.GenerationRecord) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, models.GenerationRecord) error { return nil }

// Multi records to every sink and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec models.GenerationRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine drops nil recorders and returns Nop, the single recorder or a Multi.
func Combine(recorders ...Recorder) Recorder {
	var out Multi
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	}
	return out
}
