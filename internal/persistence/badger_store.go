package persistence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	cursorPrefix      = "cursor/"
	operationIDPrefix = "opid/"

	maxConflictRetries = 8
	valueLogGCInterval = 30 * time.Minute
)

// BadgerStore is the embedded alternative to PostgresStore for single-node
// deployments. An empty dir opens an in-memory database.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
	stop   chan struct{}
}

// OpenBadgerStore opens (or creates) the store under dir.
func OpenBadgerStore(dir string, logger zerolog.Logger) (*BadgerStore, error) {
	isInMemory := len(dir) <= 0

	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{logger}
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}

	bs := &BadgerStore{db: db, logger: logger, stop: make(chan struct{})}
	if !isInMemory {
		go bs.runValueLogGC()
	}
	return bs, nil
}

func (bs *BadgerStore) Close() error {
	close(bs.stop)
	return bs.db.Close()
}

func (bs *BadgerStore) GetCursor(_ context.Context, brokerAccountID int64) (int64, bool, error) {
	var (
		cursor int64
		found  bool
	)
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cursorKey(brokerAccountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt cursor value (%d bytes)", len(val))
			}
			cursor = int64(binary.BigEndian.Uint64(val))
			found = true
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("get cursor for account %d: %w", brokerAccountID, err)
	}
	return cursor, found, nil
}

func (bs *BadgerStore) SetCursor(_ context.Context, brokerAccountID, cursor int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(cursor))

	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cursorKey(brokerAccountID), val)
	})
	if err != nil {
		return fmt.Errorf("set cursor for account %d: %w", brokerAccountID, err)
	}
	return nil
}

// GetOrCreateOperationID reads and conditionally writes in one serializable
// transaction. A concurrent writer makes the commit fail with ErrConflict;
// the retry then observes the winner's key.
func (bs *BadgerStore) GetOrCreateOperationID(ctx context.Context, depositID int64, candidate uuid.UUID) (uuid.UUID, error) {
	key := operationIDKey(depositID)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return uuid.Nil, err
		}

		var opID uuid.UUID
		err := bs.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				opID = candidate
				return txn.Set(key, candidate[:])
			case err != nil:
				return err
			}
			return item.Value(func(val []byte) error {
				parsed, err := uuid.FromBytes(val)
				if err != nil {
					return fmt.Errorf("corrupt operation id: %w", err)
				}
				opID = parsed
				return nil
			})
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return uuid.Nil, fmt.Errorf("get or create operation id for deposit %d: %w", depositID, err)
		}
		return opID, nil
	}

	return uuid.Nil, fmt.Errorf("get or create operation id for deposit %d: %w", depositID, badger.ErrConflict)
}

func (bs *BadgerStore) runValueLogGC() {
	ticker := time.NewTicker(valueLogGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bs.stop:
			return
		case <-ticker.C:
			if err := bs.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				bs.logger.Error().Err(err).Msg("badger value log GC failed")
			}
		}
	}
}

func cursorKey(brokerAccountID int64) []byte {
	return []byte(cursorPrefix + strconv.FormatInt(brokerAccountID, 10))
}

func operationIDKey(depositID int64) []byte {
	return []byte(operationIDPrefix + strconv.FormatInt(depositID, 10))
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(format, args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(format, args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(format, args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug().Msgf(format, args...)
}
