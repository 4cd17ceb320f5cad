package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// partitionSep separates the partition name from the key inside badger.
const partitionSep = "/"

// metaPrefix holds partition markers written on open.
const metaPrefix = "meta" + partitionSep + "partition" + partitionSep

// slogBadger routes badger diagnostics to slog, tagged with the backend.
type slogBadger struct {
	logger *slog.Logger
}

func newSlogBadger(logger *slog.Logger) *slogBadger {
	return &slogBadger{logger: logger.With(slog.String("backend", BackendBadger))}
}

func (l *slogBadger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogBadger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogBadger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogBadger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// badgerBackend stores every partition in one BadgerDB keyspace, each under
// its own "<partition>/" prefix. Keys sort in byte order within a partition.
type badgerBackend struct {
	db *badger.DB
	gc *valueLogGC
}

func openBadger(cfg Config) (*badgerBackend, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(newSlogBadger(cfg.Logger))
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &badgerBackend{db: db}
	if err := b.ensurePartitions(); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		b.gc = startValueLogGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}

	return b, nil
}

// ensurePartitions records a marker for each partition so an opened store
// always lists both, even before the first commit.
func (b *badgerBackend) ensurePartitions() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, p := range Partitions {
			if err := txn.Set([]byte(metaPrefix+string(p)), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create partitions: %w", err)
	}
	return nil
}

func badgerKey(p Partition, key string) ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPartition, p)
	}
	return []byte(string(p) + partitionSep + key), nil
}

func (b *badgerBackend) Get(_ context.Context, p Partition, key string) ([]byte, bool, error) {
	k, err := badgerKey(p, key)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", p, key, err)
	}
	return value, true, nil
}

func (b *badgerBackend) Scan(_ context.Context, p Partition, prefix string, fn func(key string, value []byte) error) error {
	full, err := badgerKey(p, prefix)
	if err != nil {
		return err
	}
	strip := len(p) + len(partitionSep)

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = full
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(full); it.ValidForPrefix(full); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("scan %s: %w", p, err)
			}
			if err := fn(string(item.Key()[strip:]), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Commit applies the whole batch in one badger transaction.
func (b *badgerBackend) Commit(_ context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, put := range batch.puts {
			k, err := badgerKey(put.Partition, put.Key)
			if err != nil {
				return err
			}
			if err := txn.Set(k, put.Value); err != nil {
				return fmt.Errorf("put %s/%s: %w", put.Partition, put.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *badgerBackend) Close() error {
	if b.gc != nil {
		b.gc.stop()
	}
	return b.db.Close()
}

// valueLogGC reclaims value log space on a fixed period until stopped.
type valueLogGC struct {
	db     *badger.DB
	ratio  float64
	logger *slog.Logger
	quit   chan struct{}
	done   chan struct{}
}

// maxRewritesPerTick bounds how many value log files one tick may rewrite.
const maxRewritesPerTick = 8

func startValueLogGC(db *badger.DB, every time.Duration, ratio float64, logger *slog.Logger) *valueLogGC {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultGCDiscardRatio
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gc := &valueLogGC{
		db:     db,
		ratio:  ratio,
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go gc.loop(every)
	return gc
}

func (gc *valueLogGC) loop(every time.Duration) {
	defer close(gc.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-gc.quit:
			return
		case <-ticker.C:
			gc.collect()
		}
	}
}

// collect rewrites value log files while badger finds enough garbage.
// It returns the number of files rewritten.
func (gc *valueLogGC) collect() int {
	rewritten := 0
	for rewritten < maxRewritesPerTick {
		err := gc.db.RunValueLogGC(gc.ratio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				gc.logger.Warn("value log gc failed", slog.Any("error", err))
			}
			break
		}
		rewritten++
	}
	if rewritten > 0 {
		gc.logger.Debug("value log gc", slog.Int("rewritten", rewritten))
	}
	return rewritten
}

// stop ends the loop and waits for an in-flight collection to finish.
func (gc *valueLogGC) stop() {
	close(gc.quit)
	<-gc.done
}
