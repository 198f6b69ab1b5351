// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirsle/configdir"
	"go.etcd.io/bbolt"
)

const (
	// DefaultLocalStorageFile is the name of the cache file within the user's
	// config dir
	DefaultLocalStorageFile = "token_cache.db"

	// DefaultLockTimeout is how long an operation waits for another process
	// (or session) holding the cache file.
	DefaultLockTimeout = 5 * time.Second
)

var (
	entriesBucket = []byte("entries")
	pendingBucket = []byte("pending")
)

// LocalStorage is a persistent Cache backed by a bbolt file. The file is
// opened for each operation, so any number of sessions (and processes) can
// share it; the file lock is only held for the duration of one operation.
type LocalStorage struct {
	path        string
	lockTimeout time.Duration
}

var _ Cache = (*LocalStorage)(nil)

// DefaultLocalStoragePath returns the default cache file path within the
// user's local config dir, creating the directory if needed.
func DefaultLocalStoragePath() (string, error) {
	const op = "cache.DefaultLocalStoragePath"
	dir := configdir.LocalConfig("hashicorp", "msauth")
	if err := configdir.MakePath(dir); err != nil {
		return "", fmt.Errorf("%s: unable to create config dir %q: %w", op, dir, err)
	}
	return filepath.Join(dir, DefaultLocalStorageFile), nil
}

// NewLocalStorage returns a LocalStorage for the file at path. An empty
// path uses DefaultLocalStoragePath(). The file is created on first write.
func NewLocalStorage(path string, lockTimeout time.Duration) (*LocalStorage, error) {
	const op = "cache.NewLocalStorage"
	if path == "" {
		var err error
		if path, err = DefaultLocalStoragePath(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%s: %q is a directory: %w", op, path, ErrInvalidParameter)
	}
	return &LocalStorage{
		path:        path,
		lockTimeout: lockTimeout,
	}, nil
}

// Path returns the cache file path
func (l *LocalStorage) Path() string { return l.path }

func (l *LocalStorage) open(readOnly bool) (*bbolt.DB, error) {
	if readOnly {
		if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	return bbolt.Open(l.path, 0o600, &bbolt.Options{
		Timeout:  l.lockTimeout,
		ReadOnly: readOnly,
	})
}

func (l *LocalStorage) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := l.open(true)
	if err != nil {
		return err
	}
	if db == nil {
		// nothing has been written yet
		return nil
	}
	defer db.Close()
	return db.View(fn)
}

func (l *LocalStorage) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := l.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func partitionBucket(tx *bbolt.Tx, root []byte, partition string) *bbolt.Bucket {
	b := tx.Bucket(root)
	if b == nil {
		return nil
	}
	return b.Bucket([]byte(partition))
}

func createPartitionBucket(tx *bbolt.Tx, root []byte, partition string) (*bbolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists(root)
	if err != nil {
		return nil, err
	}
	return b.CreateBucketIfNotExists([]byte(partition))
}

// List implements Cache.List. bbolt keeps keys sorted, so entries are
// returned ordered by home account id.
func (l *LocalStorage) List(ctx context.Context, partition string) ([]*Entry, error) {
	const op = "cache.(LocalStorage).List"
	var entries []*Entry
	err := l.view(ctx, func(tx *bbolt.Tx) error {
		b := partitionBucket(tx, entriesBucket, partition)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unable to decode entry %q: %w", k, err)
			}
			entries = append(entries, &e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// Get implements Cache.Get
func (l *LocalStorage) Get(ctx context.Context, partition, homeAccountID string) (*Entry, error) {
	const op = "cache.(LocalStorage).Get"
	var e *Entry
	err := l.view(ctx, func(tx *bbolt.Tx) error {
		b := partitionBucket(tx, entriesBucket, partition)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(homeAccountID))
		if v == nil {
			return nil
		}
		e = &Entry{}
		return json.Unmarshal(v, e)
	})
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case e == nil:
		return nil, fmt.Errorf("%s: %q: %w", op, homeAccountID, ErrNotFound)
	}
	return e, nil
}

// Put implements Cache.Put
func (l *LocalStorage) Put(ctx context.Context, partition string, e *Entry) error {
	const op = "cache.(LocalStorage).Put"
	if err := validateEntry(op, partition, e); err != nil {
		return err
	}
	v, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: unable to encode entry: %w", op, err)
	}
	err = l.update(ctx, func(tx *bbolt.Tx) error {
		b, err := createPartitionBucket(tx, entriesBucket, partition)
		if err != nil {
			return err
		}
		return b.Put([]byte(e.HomeAccountID), v)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete implements Cache.Delete
func (l *LocalStorage) Delete(ctx context.Context, partition, homeAccountID string) error {
	const op = "cache.(LocalStorage).Delete"
	err := l.update(ctx, func(tx *bbolt.Tx) error {
		b := partitionBucket(tx, entriesBucket, partition)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(homeAccountID))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PutPending implements Cache.PutPending
func (l *LocalStorage) PutPending(ctx context.Context, partition string, p *Pending) error {
	const op = "cache.(LocalStorage).PutPending"
	if err := validatePending(op, partition, p); err != nil {
		return err
	}
	v, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: unable to encode pending request: %w", op, err)
	}
	err = l.update(ctx, func(tx *bbolt.Tx) error {
		b, err := createPartitionBucket(tx, pendingBucket, partition)
		if err != nil {
			return err
		}
		return b.Put([]byte(p.State), v)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TakePending implements Cache.TakePending
func (l *LocalStorage) TakePending(ctx context.Context, partition, state string) (*Pending, error) {
	const op = "cache.(LocalStorage).TakePending"
	var p *Pending
	err := l.update(ctx, func(tx *bbolt.Tx) error {
		b := partitionBucket(tx, pendingBucket, partition)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(state))
		if v == nil {
			return nil
		}
		p = &Pending{}
		if err := json.Unmarshal(v, p); err != nil {
			return err
		}
		return b.Delete([]byte(state))
	})
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case p == nil:
		return nil, fmt.Errorf("%s: %q: %w", op, state, ErrNotFound)
	}
	return p, nil
}
