package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// gcInterval is how often the value log garbage collector runs
const gcInterval = 5 * time.Minute

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
	stopGC chan struct{}

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger in favor of arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info().Str("path", config.Path).Msg("Badger database initialized")

	b := &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		stopGC: make(chan struct{}),
		seqs:   make(map[string]*badger.Sequence),
	}
	go b.runGC()

	return b, nil
}

// runGC reclaims value-log space periodically. Badger never runs its own
// garbage collection, long scrape sessions leak disk without this.
func (b *BadgerDB) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			for {
				err := b.store.Badger().RunValueLogGC(0.5)
				if err != nil {
					if err != badger.ErrNoRewrite {
						b.logger.Warn().Err(err).Msg("Badger value log GC failed")
					}
					break
				}
			}
		}
	}
}

// NextID allocates the next int64 key for the named record type.
// Badgerhold's own NextSequence produces uint64 keys it only back-fills
// into uint64 fields, so int64-keyed records allocate their ids here.
// Ids start at 1, a zero id always means "never stored".
func (b *BadgerDB) NextID(name string) (int64, error) {
	b.seqMu.Lock()
	seq, ok := b.seqs[name]
	if !ok {
		var err error
		seq, err = b.store.Badger().GetSequence([]byte("colligo_seq_"+name), 128)
		if err != nil {
			b.seqMu.Unlock()
			return 0, fmt.Errorf("failed to open sequence %s: %w", name, err)
		}
		b.seqs[name] = seq
	}
	b.seqMu.Unlock()

	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return int64(n) + 1, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close stops the GC loop, releases id sequences and closes the database
func (b *BadgerDB) Close() error {
	close(b.stopGC)

	b.seqMu.Lock()
	for name, seq := range b.seqs {
		if err := seq.Release(); err != nil {
			b.logger.Warn().Err(err).Str("sequence", name).Msg("Sequence release failed")
		}
	}
	b.seqs = nil
	b.seqMu.Unlock()

	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
