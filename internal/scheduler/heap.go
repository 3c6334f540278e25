// Package scheduler implements the Scheduler (C4): a min-heap of
// (next_run_time, job_key) tasks driven by cron expressions, with
// missed-run catch-up, grounded on
// original_source/.../scheduler.py's heapq-based SyncScheduler.
package scheduler

import (
	"container/heap"
	"time"
)

// Task is one scheduled sync, ordered by ScheduledTime. It mirrors the
// Python original's SyncTask dataclass.
type Task struct {
	ScheduledTime time.Time
	JobKey        string

	index int // heap index, maintained by taskHeap.Swap
	seq   int // insertion order, for a deterministic tie-break
}

// taskHeap implements container/heap.Interface over []*Task.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].ScheduledTime.Equal(h[j].ScheduledTime) {
		return h[i].seq < h[j].seq
	}
	return h[i].ScheduledTime.Before(h[j].ScheduledTime)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[:n-1]
	return task
}
