package archive

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TaskKey identifies an archive task.  At most one task per key is in flight;
// a task for a newer record of the same user replaces the older one.
type TaskKey struct {
	UserId   string `json:"user_id"`
	Resource string `json:"resource"`
}

// TaskStatus is a diagnostic snapshot of an in-flight task.
type TaskStatus struct {
	TaskKey
	RecordUuid string    `json:"record_uuid"`
	JobId      string    `json:"job_id,omitempty"`
	Polls      int       `json:"polls"`
	StartedAt  time.Time `json:"started_at"`
}

// task is an in-flight entry: its status and the cancel func of its context.
type task struct {
	status TaskStatus
	cancel context.CancelFunc
}

// taskGroup tracks in-flight tasks by key.
type taskGroup struct {
	mu    sync.Mutex
	tasks map[TaskKey]*task
}

func newTaskGroup() *taskGroup {
	return &taskGroup{tasks: make(map[TaskKey]*task)}
}

// add registers a task.  If the key is in flight for the same record, add returns
// false and nothing changes.  If it is in flight for another record, that task is
// cancelled and replaced, and superseded is true.
func (g *taskGroup) add(status TaskStatus, cancel context.CancelFunc) (added, superseded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.tasks[status.TaskKey]; ok {
		if current.status.RecordUuid == status.RecordUuid {
			return false, false
		}
		current.cancel()
		superseded = true
	}

	g.tasks[status.TaskKey] = &task{status: status, cancel: cancel}
	return true, superseded
}

// update applies fn to the task at key, only while it still belongs to recordUuid.
func (g *taskGroup) update(key TaskKey, recordUuid string, fn func(s *TaskStatus)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.tasks[key]; ok && t.status.RecordUuid == recordUuid {
		fn(&t.status)
	}
}

// remove drops the task at key unless it has since been replaced by another record's task.
func (g *taskGroup) remove(key TaskKey, recordUuid string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.tasks[key]; ok && t.status.RecordUuid == recordUuid {
		delete(g.tasks, key)
	}
}

// snapshot returns copies of every in-flight task ordered by user then resource.
func (g *taskGroup) snapshot() []TaskStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]TaskStatus, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, t.status)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserId != out[j].UserId {
			return out[i].UserId < out[j].UserId
		}
		return out[i].Resource < out[j].Resource
	})
	return out
}
