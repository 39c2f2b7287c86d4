// Package jobs runs repository operations off the caller's goroutine.
//
// The git facade is synchronous and keeps no state between calls, so two
// mutations of the same repository must not overlap. Pool bounds the number
// of operations in flight and serializes them per repository: readers share
// a repository, writers get it alone.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
)

var ErrClosed = errors.New("pool closed")

type Kind uint8

const (
	// Read jobs may run alongside other reads of the same repository.
	Read Kind = iota
	// Write jobs run alone on their repository.
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	locks  map[string]*sync.RWMutex
	closed bool
}

// NewPool returns a pool running at most size jobs at once; size <= 0 means 4.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		sem:   make(chan struct{}, size),
		locks: make(map[string]*sync.RWMutex),
	}
}

func (p *Pool) lockFor(repoPath string) (*sync.RWMutex, error) {
	key, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	l, ok := p.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		p.locks[key] = l
	}
	return l, nil
}

// Do runs fn on the calling goroutine once a slot and the repository lock
// are available. A context cancelled while waiting for a slot returns its
// error without running fn.
func (p *Pool) Do(ctx context.Context, repoPath string, kind Kind, fn func() error) error {
	l, err := p.lockFor(repoPath)
	if err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	if kind == Write {
		l.Lock()
		defer l.Unlock()
	} else {
		l.RLock()
		defer l.RUnlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Debug("job", slog.String("repo", repoPath), slog.String("kind", kind.String()))
	return fn()
}

// Go runs Do on a new goroutine. The returned channel receives its error and
// is then closed.
func (p *Pool) Go(ctx context.Context, repoPath string, kind Kind, fn func() error) <-chan error {
	done := make(chan error, 1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		done <- ErrClosed
		close(done)
		return done
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		defer close(done)
		done <- p.Do(ctx, repoPath, kind, fn)
	}()
	return done
}

// Close refuses new jobs and waits for the running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
