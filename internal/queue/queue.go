// Package queue implements the Repo Work Queue: a process-wide map of
// per-RepoKey FIFOs, each drained by exactly one worker at a time, so two
// jobs for the same repo never interleave on a shared clone.
package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/octobot-dev/octobot/models"
)

// Handler runs one backport job to completion. cmd/serve.go supplies a
// closure that calls internal/backport.Engine.Run.
type Handler func(job models.BackportJob)

// Queue owns one worker goroutine per RepoKey, spawned on demand and retired
// after IdleGrace with nothing left to do.
type Queue struct {
	handler   Handler
	depth     int
	idleGrace time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	workers map[models.RepoKey]*repoWorker
}

// New builds a Queue. depth bounds how many jobs may wait per repo before
// Enqueue starts rejecting; idleGrace is how long an empty worker waits
// before exiting.
func New(handler Handler, depth int, idleGrace time.Duration) *Queue {
	if depth <= 0 {
		depth = 64
	}
	if idleGrace <= 0 {
		idleGrace = 5 * time.Minute
	}
	return &Queue{
		handler:   handler,
		depth:     depth,
		idleGrace: idleGrace,
		log:       slog.Default(),
		workers:   make(map[models.RepoKey]*repoWorker),
	}
}

// Enqueue appends job to key's FIFO, respawning its worker if it had gone
// idle and exited. Returns an error if the queue for key is at capacity.
func (q *Queue) Enqueue(key models.RepoKey, job models.BackportJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	w, ok := q.workers[key]
	if !ok || w.stopped() {
		w = newRepoWorker(key, q.handler, q.depth, q.idleGrace, q.onWorkerIdleExit, q.log)
		q.workers[key] = w
	}
	return w.submit(job)
}

// onWorkerIdleExit is called by a worker right before it exits, so the next
// Enqueue for that key knows to spawn a replacement rather than submit to a
// dead channel.
func (q *Queue) onWorkerIdleExit(key models.RepoKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.workers[key]; ok && w.stopped() {
		delete(q.workers, key)
	}
}

// Depth reports how many jobs are currently queued (including one in
// flight) for key, for operator telemetry.
func (q *Queue) Depth(key models.RepoKey) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.workers[key]
	if !ok {
		return 0
	}
	return w.depth()
}

type repoWorker struct {
	key       models.RepoKey
	jobs      chan models.BackportJob
	handler   Handler
	idleGrace time.Duration
	onExit    func(models.RepoKey)
	log       *slog.Logger

	mu   sync.Mutex
	done bool
	n    int
}

func newRepoWorker(key models.RepoKey, handler Handler, depth int, idleGrace time.Duration, onExit func(models.RepoKey), log *slog.Logger) *repoWorker {
	w := &repoWorker{
		key:       key,
		jobs:      make(chan models.BackportJob, depth),
		handler:   handler,
		idleGrace: idleGrace,
		onExit:    onExit,
		log:       log,
	}
	go w.run()
	return w
}

func (w *repoWorker) submit(job models.BackportJob) error {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return fmt.Errorf("queue for %s has stopped", w.key.String())
	}
	select {
	case w.jobs <- job:
		w.n++
		w.mu.Unlock()
		return nil
	default:
		w.mu.Unlock()
		return fmt.Errorf("queue for %s is full", w.key.String())
	}
}

func (w *repoWorker) stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *repoWorker) depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *repoWorker) run() {
	timer := time.NewTimer(w.idleGrace)
	defer timer.Stop()
	for {
		select {
		case job := <-w.jobs:
			timer.Stop()
			w.handler(job)
			w.mu.Lock()
			w.n--
			w.mu.Unlock()
			timer.Reset(w.idleGrace)
		case <-timer.C:
			w.mu.Lock()
			w.done = true
			w.mu.Unlock()
			w.onExit(w.key)
			return
		}
	}
}
