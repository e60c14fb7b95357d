// Package pipeline drains a queue of projects through a bounded worker
// pool and assembles the results of a run.
package pipeline

import (
	"context"

	"github.com/trustedanalytics/platform-parent/src/config"
)

// Item is one queued project and its position in the run.
type Item struct {
	Index   int
	Project config.Project
}

// Queue hands each loaded project to exactly one caller. It is filled and
// closed before any worker starts, so a pop either returns an item or
// reports the queue exhausted.
type Queue struct {
	ch chan Item
}

// NewQueue loads projects in order and closes the queue.
func NewQueue(projects []config.Project) *Queue {
	ch := make(chan Item, len(projects))
	for i, p := range projects {
		ch <- Item{Index: i, Project: p}
	}
	close(ch)
	return &Queue{ch: ch}
}

// Pop returns the next item, or false once the queue is exhausted.
func (q *Queue) Pop() (Item, bool) {
	it, ok := <-q.ch
	return it, ok
}

// Len returns the number of items not yet popped.
func (q *Queue) Len() int { return len(q.ch) }

// drain pops until exhaustion. Items popped after ctx is done are passed
// to skip instead of fn, and drain then reports the context error.
func (q *Queue) drain(ctx context.Context, fn, skip func(Item)) error {
	var skipped error
	for {
		it, ok := q.Pop()
		if !ok {
			return skipped
		}
		if err := ctx.Err(); err != nil {
			skip(it)
			skipped = err
			continue
		}
		fn(it)
	}
}
