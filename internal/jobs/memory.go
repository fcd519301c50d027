package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kmrl/dochub/internal/common"
)

// MemoryStore keeps jobs in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]Job
	reports map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]Job),
		reports: make(map[string]json.RawMessage),
	}
}

func (m *MemoryStore) Create(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return common.NewAppError("JOB_EXISTS", fmt.Sprintf("job %s already exists", job.ID), common.ErrInvalidInput)
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, notFound(id)
	}
	return cloneJob(j), nil
}

func (m *MemoryStore) List(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, cloneJob(j))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].Timestamp != out[k].Timestamp {
			return out[i].Timestamp < out[k].Timestamp
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return notFound(job.ID)
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MemoryStore) SaveReport(_ context.Context, id string, report json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return notFound(id)
	}
	m.reports[id] = append(json.RawMessage(nil), report...)
	return nil
}

func (m *MemoryStore) Report(_ context.Context, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report for job %s: %w", id, common.ErrNotFound)
	}
	return append(json.RawMessage(nil), r...), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func notFound(id string) error {
	return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
}
