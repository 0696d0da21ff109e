// Package filestore persists repository state to a single JSON file.
// Every mutation rewrites the whole document, so cost grows with total state size.
// There is no cross-process locking: two processes on one file overwrite each other.
package filestore

import (
	"os"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository/memory"
	"github.com/dosacha/simvex-api/pkg/fileurl"
	"github.com/dosacha/simvex-api/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultPath is used when the configuration leaves the file path empty
const DefaultPath = "storage/repository.json"

// Store wraps a memory.Store and saves it after each mutation
type Store struct {
	path   string
	logger *zap.Logger
	mem    *memory.Store
}

// New loads path (falling back to an empty state when it is missing or unreadable)
// and returns a store that saves back to it.
func New(path string, lg *zap.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if lg == nil {
		lg = zap.NewNop()
	}

	s := &Store{path: path, logger: lg}

	state, seq := s.load()
	s.mem = memory.NewStore(
		memory.WithState(state, seq),
		memory.WithLogger(lg),
		memory.WithCommitHook(s.save),
	)
	return s
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Repositories returns the repository set backed by this file
func (s *Store) Repositories() *domain.Repositories {
	return memory.NewRepositories(s.mem)
}

// NewRepositories opens path and returns its repository set
func NewRepositories(path string, lg *zap.Logger) *domain.Repositories {
	return New(path, lg).Repositories()
}

func (s *Store) load() (*memory.State, memory.Sequences) {
	if !fileurl.IsExist(s.path) {
		return memory.NewState(), memory.NewSequences()
	}
	if !fileurl.IsFile(s.path) {
		s.logger.Warn("repository path is not a regular file, starting with empty state",
			zap.String(logger.FieldPath, s.path))
		return memory.NewState(), memory.NewSequences()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("repository file unreadable, starting with empty state",
			zap.String(logger.FieldPath, s.path),
			zap.Error(err))
		return memory.NewState(), memory.NewSequences()
	}

	doc := new(document)
	if err := sonic.ConfigStd.Unmarshal(data, doc); err != nil {
		s.logger.Warn("repository file is not valid JSON, starting with empty state",
			zap.String(logger.FieldPath, s.path),
			zap.Error(err))
		return memory.NewState(), memory.NewSequences()
	}

	state, seq, err := decode(doc)
	if err != nil {
		s.logger.Warn("repository file has invalid content, starting with empty state",
			zap.String(logger.FieldPath, s.path),
			zap.Error(err))
		return memory.NewState(), memory.NewSequences()
	}

	s.logger.Debug("repository file loaded",
		zap.String(logger.FieldPath, s.path),
		zap.Int("tenants", len(state.Workflows)))
	return state, seq
}

// save is the memory store commit hook, it runs with the store lock held
func (s *Store) save(state *memory.State, seq memory.Sequences) error {
	data, err := sonic.ConfigStd.MarshalIndent(encode(state, seq), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode repository file failed")
	}
	if err := fileurl.WriteFileAtomic(s.path, data, 0644); err != nil {
		s.logger.Error("repository file save failed",
			zap.String(logger.FieldPath, s.path),
			zap.Error(err))
		return errors.Wrap(err, "write repository file failed")
	}
	s.logger.Debug("repository file saved",
		zap.String(logger.FieldPath, s.path),
		zap.Int(logger.FieldSize, len(data)))
	return nil
}
