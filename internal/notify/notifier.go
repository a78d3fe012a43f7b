// Package notify announces finished generation requests.
package notify

import (
	"context"
	"errors"

	"docgen-workers/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, rec models.GenerationRecord) error
}

type Nop struct{}

func (Nop) Notify(context.Context, models.GenerationRecord) error { return nil }

// Multi notifies every channel and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, rec models.GenerationRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine drops nil notifiers and returns Nop, the single notifier or a Multi.
func Combine(notifiers ...Notifier) Notifier {
	var out Multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
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
