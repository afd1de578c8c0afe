package memory

import (
	"context"

	"go.uber.org/zap"

	"posledger/backend/internal/seed"
)

// NewSeeded returns a store preloaded with the demo data set. Seeding
// warnings, such as falling back to default passwords, go to logger. It
// panics if the data set cannot be loaded, which only happens on programmer
// error.
func NewSeeded(logger *zap.Logger) *Store {
	s := New()
	if err := seed.Demo(context.Background(), s, logger); err != nil {
		panic(err)
	}
	return s
}
