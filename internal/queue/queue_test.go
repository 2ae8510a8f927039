package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/octobot-dev/octobot/models"
)

func TestEnqueueRunsJobsInOrderPerRepo(t *testing.T) {
	var mu sync.Mutex
	var order []int

	handler := func(job models.BackportJob) {
		mu.Lock()
		order = append(order, job.SrcPRNumber)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}

	q := New(handler, 8, time.Second)
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}

	for i := 1; i <= 5; i++ {
		if err := q.Enqueue(key, models.BackportJob{SrcPRNumber: i}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for all jobs, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	for i, v := range order {
		if v != i+1 {
			t.Fatalf("expected job order 1..5, got %v", order)
		}
	}
}

func TestEnqueueDifferentReposRunConcurrently(t *testing.T) {
	start := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	handler := func(job models.BackportJob) {
		once.Do(func() { close(start) })
		<-release
	}

	q := New(handler, 4, time.Second)
	keyA := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "a"}
	keyB := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "b"}

	if err := q.Enqueue(keyA, models.BackportJob{SrcPRNumber: 1}); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue(keyB, models.BackportJob{SrcPRNumber: 2}); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	select {
	case <-start:
	case <-time.After(time.Second):
		t.Fatal("expected at least one worker to start")
	}
	close(release)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	started := make(chan struct{}, 8)
	block := make(chan struct{})
	handler := func(job models.BackportJob) {
		started <- struct{}{}
		<-block
	}

	q := New(handler, 2, time.Second)
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}

	if err := q.Enqueue(key, models.BackportJob{SrcPRNumber: 1}); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	// Wait for the worker to pull job 1 off the channel so the buffer is
	// empty and the next two enqueues deterministically fill it.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker never started job 1")
	}
	if err := q.Enqueue(key, models.BackportJob{SrcPRNumber: 2}); err != nil {
		t.Fatalf("second enqueue should fit in the buffer: %v", err)
	}
	if err := q.Enqueue(key, models.BackportJob{SrcPRNumber: 3}); err != nil {
		t.Fatalf("third enqueue should fit in the buffer: %v", err)
	}
	if err := q.Enqueue(key, models.BackportJob{SrcPRNumber: 4}); err == nil {
		t.Fatal("expected fourth enqueue to be rejected as full")
	}
	close(block)
}
