package memory

import "github.com/dosacha/simvex-api/internal/domain"

// NewRepositories wires all three repositories to one store
func NewRepositories(store *Store) *domain.Repositories {
	return domain.NewRepositories(
		NewMemoRepository(store),
		NewAiHistoryRepository(store),
		NewWorkflowRepository(store),
	)
}
