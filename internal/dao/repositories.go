package dao

import "github.com/dosacha/simvex-api/internal/domain"

// NewRepositories wires the relational repositories to one Dao
func NewRepositories(d *Dao, closers ...func() error) *domain.Repositories {
	return domain.NewRepositories(
		NewMemoRepository(d),
		NewAiHistoryRepository(d),
		NewWorkflowRepository(d),
		closers...,
	)
}
