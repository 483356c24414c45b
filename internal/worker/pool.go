package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/plc-filebridge/backend/internal/models"
)

// DefaultPoolSize bounds concurrent tasks, and so concurrent server sessions.
const DefaultPoolSize = 5

// Result is the outcome of one task.
type Result struct {
	Task   models.Task
	Delta  models.Delta
	Report models.TaskReport
	Err    error
}

// TaskFunc processes one task.
type TaskFunc func(ctx context.Context, task models.Task) Result

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	size int
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Run starts every task and returns a channel that yields results as tasks
// finish, in completion order. The channel is closed after the last result.
// A panicking task becomes a failed Result; siblings keep running.
func (p *Pool) Run(ctx context.Context, tasks []models.Task, fn TaskFunc) <-chan Result {
	results := make(chan Result, len(tasks))
	jobs := make(chan models.Task)

	workers := min(p.size, len(tasks))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- runSafe(ctx, task, fn)
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			jobs <- task
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()
	return results
}

func runSafe(ctx context.Context, task models.Task, fn TaskFunc) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Task: task, Err: fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())}
		}
	}()
	res = fn(ctx, task)
	res.Task = task
	return res
}
