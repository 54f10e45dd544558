package db

import (
	"sync"

	"github.com/ldi/tasker/pkg/models"
)

type StagedItems struct {
	Tasks []*models.Task
}

// StagingManager provides thread-safe in-memory storage for staged tasks.
// Staged tasks are written together by CommitBatch.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string]*StagedItems
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string]*StagedItems),
	}
}

func (sm *StagingManager) AddTask(sessionID string, task *models.Task) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedItems{Tasks: []*models.Task{}}
	}
	sm.staged[sessionID].Tasks = append(sm.staged[sessionID].Tasks, task)
}

func (sm *StagingManager) GetAndClear(sessionID string) *StagedItems {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{Tasks: []*models.Task{}}
	}

	delete(sm.staged, sessionID)
	return items
}

// Discard drops a session without committing it.
func (sm *StagingManager) Discard(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.staged, sessionID)
}

func (sm *StagingManager) Peek(sessionID string) *StagedItems {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{Tasks: []*models.Task{}}
	}

	copied := make([]*models.Task, len(items.Tasks))
	copy(copied, items.Tasks)
	return &StagedItems{Tasks: copied}
}
