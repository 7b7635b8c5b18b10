package helpers

import (
	"testing"

	"github.com/xiaot623/studybuddy/internal/repository"
)

func NewTestSQLiteStore(t *testing.T, opts ...repository.Option) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
