package audit

import (
	"context"
	"errors"
)

// Tee appends every event to each store in order and joins their errors.
type Tee []Store

func (t Tee) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListBySubject reads from the first store that supports queries.
func (t Tee) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	for _, s := range t {
		if r, ok := s.(Reader); ok {
			return r.ListBySubject(ctx, subject)
		}
	}
	return nil, errors.New("no queryable audit store")
}
