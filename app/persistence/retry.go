package persistence

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

// Backend is a key/value storage wrapped by Retrying
type Backend interface {
	Load(key string) (value []byte, ok bool, err error)
	Save(key string, value []byte) error
	String() string
}

// Repeater defines interface for go-pkgz/repeater
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Retrying repeats failed loads and saves of the wrapped backend, for transient failures like locked db
type Retrying struct {
	Backend
	rptr Repeater
}

// NewRetrying wraps backend with backoff retries. Attempts below 2 mean no retries.
func NewRetrying(backend Backend, attempts int, delay time.Duration) *Retrying {
	var strtg strategy.Interface = &strategy.Once{}
	if attempts > 1 {
		strtg = &strategy.Backoff{Repeats: attempts, Duration: delay, Factor: 2, Jitter: true}
	}
	return &Retrying{Backend: backend, rptr: repeater.New(strtg)}
}

// Load reads the value for key, retried on error
func (r *Retrying) Load(key string) (value []byte, ok bool, err error) {
	attempt := 0
	err = r.rptr.Do(context.Background(), func() error {
		attempt++
		var e error
		value, ok, e = r.Backend.Load(key)
		if e != nil {
			log.Printf("[DEBUG] load %q from %s failed, attempt %d: %v", key, r.Backend, attempt, e)
		}
		return e
	})
	if err != nil {
		return nil, false, fmt.Errorf("load failed after %d attempts: %w", attempt, err)
	}
	return value, ok, nil
}

// Save writes the value for key, retried on error
func (r *Retrying) Save(key string, value []byte) error {
	attempt := 0
	err := r.rptr.Do(context.Background(), func() error {
		attempt++
		e := r.Backend.Save(key, value)
		if e != nil {
			log.Printf("[WARN] save %q to %s failed, attempt %d: %v", key, r.Backend, attempt, e)
		}
		return e
	})
	if err != nil {
		return fmt.Errorf("save failed after %d attempts: %w", attempt, err)
	}
	return nil
}

// String describes the wrapped backend
func (r *Retrying) String() string {
	return r.Backend.String()
}

// Close closes the wrapped backend if it supports closing
func (r *Retrying) Close() error {
	if c, ok := r.Backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
