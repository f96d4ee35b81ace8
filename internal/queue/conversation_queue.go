package queue

import (
	"container/list"
	"fmt"
)

// ConversationQueue holds the pending jobs of a single session in FIFO order
// with at most one job in flight. It is owned by the dispatcher goroutine and
// is not safe for concurrent use.
type ConversationQueue struct {
	jobs       *list.List
	processing *Job
	sessionID  string
}

// NewConversationQueue creates a queue for sessionID.
func NewConversationQueue(sessionID string) *ConversationQueue {
	return &ConversationQueue{
		sessionID: sessionID,
		jobs:      list.New(),
	}
}

// Enqueue appends a job.
func (cq *ConversationQueue) Enqueue(job *Job) error {
	if job == nil {
		return fmt.Errorf("cannot enqueue nil job")
	}
	if job.SessionID != cq.sessionID {
		return fmt.Errorf("job session ID %s does not match queue ID %s", job.SessionID, cq.sessionID)
	}
	cq.jobs.PushBack(job)
	return nil
}

// Dequeue returns the next job, or nil if the queue is empty or a job is
// already in flight.
func (cq *ConversationQueue) Dequeue() *Job {
	if cq.processing != nil {
		return nil
	}
	front := cq.jobs.Front()
	if front == nil {
		return nil
	}
	job, ok := front.Value.(*Job)
	if !ok {
		return nil
	}
	cq.jobs.Remove(front)
	cq.processing = job
	return job
}

// Complete marks the in-flight job as done.
func (cq *ConversationQueue) Complete() {
	cq.processing = nil
}

// Size returns the number of waiting jobs.
func (cq *ConversationQueue) Size() int {
	return cq.jobs.Len()
}

// IsProcessing reports whether a job is in flight.
func (cq *ConversationQueue) IsProcessing() bool {
	return cq.processing != nil
}

// IsEmpty reports whether nothing is waiting or in flight.
func (cq *ConversationQueue) IsEmpty() bool {
	return cq.jobs.Len() == 0 && cq.processing == nil
}

// drain removes and returns every waiting job.
func (cq *ConversationQueue) drain() []*Job {
	var out []*Job
	for e := cq.jobs.Front(); e != nil; e = cq.jobs.Front() {
		if job, ok := e.Value.(*Job); ok {
			out = append(out, job)
		}
		cq.jobs.Remove(e)
	}
	return out
}
