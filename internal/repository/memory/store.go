// Package memory implements the in-process repository backend.
// The file backend reuses the same Store with a commit hook that persists state.
package memory

import (
	"sync"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"

	"go.uber.org/zap"
)

// State is the canonical in-memory layout shared by the memory and file backends.
// Memos and histories are keyed tenant -> model -> ordered slice, workflows by tenant.
type State struct {
	Memos     map[string]map[int64][]*domain.Memo
	Histories map[string]map[int64][]*domain.AiHistoryItem
	Workflows map[string]*domain.WorkflowState
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		Memos:     map[string]map[int64][]*domain.Memo{},
		Histories: map[string]map[int64][]*domain.AiHistoryItem{},
		Workflows: map[string]*domain.WorkflowState{},
	}
}

// Sequences holds the next id to hand out for every entity kind.
// Values start at 1 and only ever increase.
type Sequences struct {
	Memo       int64
	Node       int64
	Connection int64
	File       int64
}

// NewSequences returns sequences starting at 1
func NewSequences() Sequences {
	return Sequences{Memo: 1, Node: 1, Connection: 1, File: 1}
}

func (s *Sequences) normalize() {
	for _, p := range []*int64{&s.Memo, &s.Node, &s.Connection, &s.File} {
		if *p < 1 {
			*p = 1
		}
	}
}

func next(p *int64) int64 {
	id := *p
	*p++
	return id
}

// CommitFunc is invoked after every successful mutation while the store lock is held.
// It must not retain state or seq beyond the call.
type CommitFunc func(state *State, seq Sequences) error

// Store guards State and Sequences with a single mutex.
type Store struct {
	mu     sync.Mutex
	state  *State
	seq    Sequences
	commit CommitFunc
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithCommitHook installs fn to run after each mutation
func WithCommitHook(fn CommitFunc) Option {
	return func(s *Store) { s.commit = fn }
}

// WithClock overrides the clock used for history timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithState seeds the store, used by the file backend after loading from disk
func WithState(state *State, seq Sequences) Option {
	return func(s *Store) {
		if state != nil {
			s.state = state
		}
		s.seq = seq
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:  NewState(),
		seq:    NewSequences(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seq.normalize()
	if s.state.Memos == nil {
		s.state.Memos = map[string]map[int64][]*domain.Memo{}
	}
	if s.state.Histories == nil {
		s.state.Histories = map[string]map[int64][]*domain.AiHistoryItem{}
	}
	if s.state.Workflows == nil {
		s.state.Workflows = map[string]*domain.WorkflowState{}
	}
	return s
}

// Sequences returns the current allocator position
func (s *Store) Sequences() Sequences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// view runs fn under the lock without committing
func (s *Store) view(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// update runs fn under the lock and commits when fn reports a change.
// A failed commit is returned but the in-memory change is kept.
func (s *Store) update(fn func(st *State, seq *Sequences) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(s.state, &s.seq) {
		return nil
	}
	if s.commit == nil {
		return nil
	}
	return s.commit(s.state, s.seq)
}

func (s *Store) workflow(st *State, tenantID string, create bool) *domain.WorkflowState {
	wf, ok := st.Workflows[tenantID]
	if !ok && create {
		wf = domain.NewWorkflowState()
		st.Workflows[tenantID] = wf
	}
	return wf
}
