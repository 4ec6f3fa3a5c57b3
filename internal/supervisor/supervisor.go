// Package supervisor keeps long running daemon tasks alive.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor restarts tasks that fail or return before shutdown with
// exponential backoff.
type Supervisor struct {
	minBackoff time.Duration
	maxBackoff time.Duration
	tasks      []Task
}

func New(minBackoff, maxBackoff time.Duration) *Supervisor {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Supervisor{minBackoff: minBackoff, maxBackoff: maxBackoff}
}

func (s *Supervisor) Add(name string, run func(ctx context.Context) error) {
	s.tasks = append(s.tasks, Task{Name: name, Run: run})
}

func (s *Supervisor) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Start runs every task until ctx is done and all of them returned.
func (s *Supervisor) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.supervise(ctx, t)
		}(t)
	}
	wg.Wait()
	log.Info("Supervisor stopped")
}

func (s *Supervisor) newBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func (s *Supervisor) supervise(ctx context.Context, t Task) {
	b := s.newBackoff(ctx)
	for {
		log.Infof("Starting task %s", t.Name)
		started := time.Now()
		err := runSafe(ctx, t)
		if ctx.Err() != nil {
			log.Infof("Task %s stopped", t.Name)
			return
		}
		if err == nil {
			err = goerrors.Errorf("task %s returned before shutdown", t.Name)
		}
		logFailure(t.Name, err)

		// a task that ran for a while starts over from the shortest delay
		if time.Since(started) > s.maxBackoff {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		log.Warnf("Restarting task %s in %s", t.Name, wait)
		select {
		case <-ctx.Done():
			log.Infof("Task %s stopped", t.Name)
			return
		case <-time.After(wait):
		}
	}
}

func runSafe(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerrors.Wrap(r, 2)
		}
	}()
	return t.Run(ctx)
}

func logFailure(name string, err error) {
	var stackErr *goerrors.Error
	if errors.As(err, &stackErr) {
		log.Errorf("Task %s failed: %v\n%s", name, err, stackErr.Stack())
		return
	}
	log.Errorf("Task %s failed: %v", name, err)
}
