package listing

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// DefaultKey is the storage key holding the listings collection
const DefaultKey = "cards"

// Storage is a key/value store for serialized data, like browser's local storage.
// Load returns ok=false if nothing stored for the key yet.
type Storage interface {
	Load(key string) (value []byte, ok bool, err error)
	Save(key string, value []byte) error
}

// Store owns the ordered collection of submitted listings and writes it through to Storage
// after every mutation. Safe for concurrent use.
type Store struct {
	storage Storage
	key     string

	mu          sync.Mutex
	listings    []JobListing
	subscribers []func([]JobListing)
}

// NewStore makes an empty Store for the given storage and key. Empty key means DefaultKey.
// Hydrate should be called once before use to load persisted listings.
func NewStore(storage Storage, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{storage: storage, key: key, listings: []JobListing{}}
}

// Hydrate loads the collection from storage. Missing or malformed data results in an empty collection,
// malformed data is logged and not reported as error. Storage read failures are returned, the collection
// is empty in this case too.
func (s *Store) Hydrate() error {
	data, ok, err := s.storage.Load(s.key)
	if err != nil {
		s.replace([]JobListing{})
		return fmt.Errorf("failed to load %q: %w", s.key, err)
	}
	if !ok {
		log.Printf("[DEBUG] nothing stored for %q, starting empty", s.key)
		s.replace([]JobListing{})
		return nil
	}

	var listings []JobListing
	if err := json.Unmarshal(data, &listings); err != nil {
		log.Printf("[WARN] malformed listings stored for %q, starting empty: %v", s.key, err)
		s.replace([]JobListing{})
		return nil
	}
	if listings == nil {
		listings = []JobListing{} // stored null
	}
	for i := range listings {
		listings[i].normalize()
	}
	log.Printf("[INFO] loaded %d listings from %q", len(listings), s.key)
	s.replace(listings)
	return nil
}

// Append adds a copy of the listing to the end of the collection and persists it.
// On persistence failure the listing stays in memory and the error is returned.
func (s *Store) Append(l JobListing) error {
	item := l.Clone()
	item.normalize()

	s.mu.Lock()
	s.listings = append(s.listings, item)
	err := s.persistLocked()
	snapshot := cloneAll(s.listings)
	s.mu.Unlock()

	s.notify(snapshot)
	return err
}

// RemoveAt removes the listing at index (0-based) and persists the collection.
// Index out of range is a no-op returning false, nothing is written in this case.
func (s *Store) RemoveAt(index int) (bool, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.listings) {
		s.mu.Unlock()
		log.Printf("[DEBUG] remove index %d out of range, ignored", index)
		return false, nil
	}
	s.listings = slices.Delete(s.listings, index, index+1)
	err := s.persistLocked()
	snapshot := cloneAll(s.listings)
	s.mu.Unlock()

	s.notify(snapshot)
	return true, err
}

// Persist serializes the whole collection and writes it to storage, replacing the prior value
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// List returns a copy of the collection, never nil
func (s *Store) List() []JobListing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.listings)
}

// Len returns the number of listings
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings)
}

// Subscribe registers fn to be called with a copy of the collection after hydration and every mutation
func (s *Store) Subscribe(fn func([]JobListing)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.listings)
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}
	if err := s.storage.Save(s.key, data); err != nil {
		log.Printf("[ERROR] failed to persist %d listings to %q: %v", len(s.listings), s.key, err)
		return fmt.Errorf("failed to save %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) replace(listings []JobListing) {
	s.mu.Lock()
	s.listings = listings
	snapshot := cloneAll(s.listings)
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *Store) notify(listings []JobListing) {
	s.mu.Lock()
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(cloneAll(listings))
	}
}
