// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaches(t *testing.T) map[string]Cache {
	t.Helper()
	ls, err := NewLocalStorage(filepath.Join(t.TempDir(), DefaultLocalStorageFile), time.Second)
	require.NoError(t, err)
	return map[string]Cache{
		"memory":        NewMemory(),
		"local-storage": ls,
	}
}

func testEntry(id string) *Entry {
	return &Entry{
		HomeAccountID: id,
		Environment:   "login.microsoftonline.com",
		TenantID:      "tid",
		Username:      id + "@contoso.com",
		AccessToken:   "at-" + id,
		IDToken:       "idt-" + id,
		RefreshToken:  "rt-" + id,
		Scopes:        []string{"openid", "User.Read"},
		ExpiresOn:     time.Now().Add(time.Hour).Round(0).UTC(),
		UpdatedAt:     time.Now().Round(0).UTC(),
	}
}

func TestPartition(t *testing.T) {
	assert.Equal(t, "abc|https://login.microsoftonline.com/common", Partition("abc", "https://login.microsoftonline.com/common"))
}

func TestCache_Entries(t *testing.T) {
	ctx := context.Background()
	const partition = "client|https://authority"
	for name, c := range testCaches(t) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)

			got, err := c.List(ctx, partition)
			require.NoError(err)
			assert.Empty(got)

			_, err = c.Get(ctx, partition, "bob")
			require.Error(err)
			assert.ErrorIs(err, ErrNotFound)

			require.NoError(c.Put(ctx, partition, testEntry("bob")))
			require.NoError(c.Put(ctx, partition, testEntry("alice")))
			require.NoError(c.Put(ctx, "other|partition", testEntry("eve")))

			got, err = c.List(ctx, partition)
			require.NoError(err)
			require.Len(got, 2)
			assert.Equal("alice", got[0].HomeAccountID)
			assert.Equal("bob", got[1].HomeAccountID)

			e, err := c.Get(ctx, partition, "bob")
			require.NoError(err)
			assert.Equal(testEntry("bob").AccessToken, e.AccessToken)
			assert.Equal([]string{"openid", "User.Read"}, e.Scopes)
			assert.True(e.ExpiresOn.After(time.Now()))

			// replace
			updated := testEntry("bob")
			updated.AccessToken = "new-at"
			require.NoError(c.Put(ctx, partition, updated))
			e, err = c.Get(ctx, partition, "bob")
			require.NoError(err)
			assert.Equal("new-at", e.AccessToken)

			// returned entries are copies
			e.Scopes[0] = "mutated"
			e, err = c.Get(ctx, partition, "bob")
			require.NoError(err)
			assert.Equal("openid", e.Scopes[0])

			require.NoError(c.Delete(ctx, partition, "bob"))
			require.NoError(c.Delete(ctx, partition, "bob"))
			require.NoError(c.Delete(ctx, "missing|partition", "bob"))
			got, err = c.List(ctx, partition)
			require.NoError(err)
			require.Len(got, 1)
			assert.Equal("alice", got[0].HomeAccountID)

			got, err = c.List(ctx, "other|partition")
			require.NoError(err)
			require.Len(got, 1)
		})
	}
}

func TestCache_Put_invalid(t *testing.T) {
	ctx := context.Background()
	for name, c := range testCaches(t) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			err := c.Put(ctx, "", testEntry("bob"))
			assert.ErrorIs(err, ErrInvalidParameter)
			err = c.Put(ctx, "p", nil)
			assert.ErrorIs(err, ErrInvalidParameter)
			err = c.Put(ctx, "p", &Entry{})
			assert.ErrorIs(err, ErrInvalidParameter)
			err = c.PutPending(ctx, "p", &Pending{})
			assert.ErrorIs(err, ErrInvalidParameter)
			err = c.PutPending(ctx, "p", nil)
			assert.ErrorIs(err, ErrInvalidParameter)
		})
	}
}

func TestCache_Pending(t *testing.T) {
	ctx := context.Background()
	const partition = "client|https://authority"
	for name, c := range testCaches(t) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			p := &Pending{
				State:        "st_1",
				Nonce:        "n_1",
				CodeVerifier: "verifier",
				RedirectURI:  "https://app.example.com/",
				Scopes:       []string{"User.Read"},
				ExpiresAt:    time.Now().Add(time.Minute).Round(0).UTC(),
			}
			_, err := c.TakePending(ctx, partition, "st_1")
			assert.ErrorIs(err, ErrNotFound)

			require.NoError(c.PutPending(ctx, partition, p))
			got, err := c.TakePending(ctx, partition, "st_1")
			require.NoError(err)
			assert.Equal(p, got)

			// a pending request can only be taken once
			_, err = c.TakePending(ctx, partition, "st_1")
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	t.Run("shared-file", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		path := filepath.Join(t.TempDir(), "shared.db")
		first, err := NewLocalStorage(path, 0)
		require.NoError(err)
		assert.Equal(path, first.Path())
		second, err := NewLocalStorage(path, 0)
		require.NoError(err)

		require.NoError(first.Put(ctx, "p", testEntry("alice")))
		got, err := second.List(ctx, "p")
		require.NoError(err)
		require.Len(got, 1)
		assert.Equal("alice", got[0].HomeAccountID)
	})
	t.Run("concurrent-sessions", func(t *testing.T) {
		require := require.New(t)
		path := filepath.Join(t.TempDir(), "concurrent.db")
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ls, err := NewLocalStorage(path, 0)
				if err != nil {
					errs <- err
					return
				}
				errs <- ls.Put(ctx, "p", testEntry(string(rune('a'+i))))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(err)
		}
		ls, err := NewLocalStorage(path, 0)
		require.NoError(err)
		got, err := ls.List(ctx, "p")
		require.NoError(err)
		require.Len(got, 10)
	})
	t.Run("directory", func(t *testing.T) {
		_, err := NewLocalStorage(t.TempDir(), 0)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("cancelled-context", func(t *testing.T) {
		ls, err := NewLocalStorage(filepath.Join(t.TempDir(), "cancelled.db"), 0)
		require.NoError(t, err)
		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()
		err = ls.Put(cancelledCtx, "p", testEntry("alice"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
