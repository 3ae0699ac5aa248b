// Package badger stores artifacts in an embedded badger database.
//
// It registers two schemes: memory:// keeps everything in memory, and
// badger:///path persists under path with periodic value-log GC.
package badger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/matzehuels/certforge/pkg/blob"
	cferrors "github.com/matzehuels/certforge/pkg/errors"
)

// DefaultGCInterval is how often a disk store runs value-log GC.
const DefaultGCInterval = 5 * time.Minute

func init() {
	blob.Register("memory", func(_ context.Context, _ *url.URL, logger *log.Logger) (blob.Store, error) {
		return New(WithLogger(logger))
	})
	blob.Register("badger", func(_ context.Context, u *url.URL, logger *log.Logger) (blob.Store, error) {
		dir := u.Path
		if dir == "" {
			dir = u.Host
		}
		if dir == "" {
			return nil, cferrors.New(cferrors.ErrCodeInvalidInput, "badger url needs a directory")
		}
		return New(WithLogger(logger), WithDir(dir))
	})
}

// Store is a badger-backed blob.Store.
type Store struct {
	db         *badger.DB
	logger     *log.Logger
	dir        string
	gcInterval time.Duration

	gcTicker *time.Ticker
	gcStop   chan struct{}
	gcWg     sync.WaitGroup
	closeMu  sync.Mutex
	closed   bool
}

// Option configures a Store.
type Option func(*Store)

// WithDir persists data under dir. Without it the store is in memory.
func WithDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// WithLogger sets the logger badger and the store report to.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithGCInterval overrides DefaultGCInterval. Zero disables GC.
func WithGCInterval(d time.Duration) Option {
	return func(s *Store) { s.gcInterval = d }
}

// New opens a store.
func New(opts ...Option) (*Store, error) {
	s := &Store{gcInterval: DefaultGCInterval}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.logger = s.logger.WithPrefix("blob")

	var bopts badger.Options
	if s.dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(s.dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		bopts = badger.DefaultOptions(s.dir).WithCompression(options.Snappy)
	}
	// INFO is noisy.
	bopts = bopts.WithLogger(loggerAdapter{s.logger}).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db

	if s.dir != "" && s.gcInterval > 0 {
		s.gcTicker = time.NewTicker(s.gcInterval)
		s.gcStop = make(chan struct{})
		s.gcWg.Add(1)
		go s.runGC()
	}
	return s, nil
}

func (s *Store) runGC() {
	defer s.gcWg.Done()
	for {
		select {
		case <-s.gcTicker.C:
			// Repeat while GC keeps rewriting files.
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("value log gc failed", "err", err)
				}
				break
			}
		case <-s.gcStop:
			return
		}
	}
}

// Put implements blob.Store. The content type is implied by the key.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get implements blob.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, blob.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out, nil
}

// Delete implements blob.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close stops GC and closes the database. It is safe to call twice.
func (s *Store) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStop)
		s.gcWg.Wait()
	}
	return s.db.Close()
}
