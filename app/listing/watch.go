package listing

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
)

// WatchOptions checks the options file periodically and sends re-parsed options each time its
// modification time changes. A change is picked up only when at least half of the interval old,
// so a few quick saves in a row produce one update. Invalid files are logged and skipped, the last
// good options stay in effect. The channel is closed when ctx is done.
func WatchOptions(ctx context.Context, fname string, interval time.Duration) (<-chan Options, error) {
	mtime := func() (time.Time, error) {
		st, err := os.Stat(fname)
		if err != nil {
			return time.Time{}, fmt.Errorf("can't stat options file %s: %w", fname, err)
		}
		return st.ModTime(), nil
	}

	lastMtime, err := mtime()
	if err != nil {
		// need file available to start change watcher
		return nil, err
	}

	ch := make(chan Options)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m, err := mtime()
				if err != nil {
					log.Printf("[WARN] %v", err)
					continue
				}
				if m.Equal(lastMtime) || time.Since(m) < interval/2 {
					continue
				}
				lastMtime = m
				opts, err := LoadOptions(fname)
				if err != nil {
					log.Printf("[WARN] options file %s changed but can't be used: %v", fname, err)
					continue
				}
				select {
				case ch <- opts:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
