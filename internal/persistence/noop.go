package persistence

import (
	"context"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// NoopStore discards every write and loads nothing.
type NoopStore struct{}

func (NoopStore) Load(context.Context) ([]domain.Turn, error) { return nil, nil }

func (NoopStore) Save(context.Context, []domain.Turn) error { return nil }

func (NoopStore) Delete(context.Context) error { return nil }

var _ Store = NoopStore{}
