package store

import (
	"context"
	"sync"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// MemoryStore keeps everything in process memory. It exists for tests
// and satisfies the same contract as the durable backends, including
// LoadState ordering.
type MemoryStore struct {
	mu          sync.Mutex
	tasks       map[string]*task.Task
	events      []task.Event
	approvals   map[string]*task.ApprovalItem
	actions     []task.ApprovalAction
	idempotency map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		tasks:       make(map[string]*task.Task),
		approvals:   make(map[string]*task.ApprovalItem),
		idempotency: make(map[string]string),
	}
}

func (s *MemoryStore) LoadState(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := NewSnapshot()
	for id, t := range s.tasks {
		snap.Tasks[id] = t.Clone()
	}
	snap.Events = append(snap.Events, s.events...)
	for id, a := range s.approvals {
		cp := *a
		snap.Approvals[id] = &cp
	}
	snap.ApprovalActions = append(snap.ApprovalActions, s.actions...)
	for k, v := range s.idempotency {
		snap.Idempotency[k] = v
	}
	return snap, nil
}

func (s *MemoryStore) SaveTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) SaveEvent(ctx context.Context, e task.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == e.ID {
			s.events[i] = e
			return nil
		}
	}
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) SaveApproval(ctx context.Context, a *task.ApprovalItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.approvals[a.QueueID] = &cp
	return nil
}

func (s *MemoryStore) SaveApprovalAction(ctx context.Context, a task.ApprovalAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.actions {
		if s.actions[i].ActionID == a.ActionID {
			s.actions[i] = a
			return nil
		}
	}
	s.actions = append(s.actions, a)
	return nil
}

func (s *MemoryStore) SaveIdempotency(ctx context.Context, taskID, key, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[IdemKey(taskID, key)] = ref
	return nil
}

func (s *MemoryStore) Close() error { return nil }
