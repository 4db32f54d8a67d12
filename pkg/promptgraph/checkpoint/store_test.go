package checkpoint_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]func() checkpoint.Store {
	return map[string]func() checkpoint.Store{
		"memory": func() checkpoint.Store {
			return checkpoint.NewMemoryStore()
		},
		"sqlite": func() checkpoint.Store {
			s, err := checkpoint.NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			require.NoError(t, store.Save("run-1", 1, []byte("tick one")))
			require.NoError(t, store.Save("run-1", 1, []byte("tick one v2")))

			data, err := store.Load("run-1", 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("tick one v2"), data)

			_, err = store.Load("run-1", 2)
			assert.ErrorIs(t, err, checkpoint.ErrNotFound)
			_, err = store.Load("other", 1)
			assert.ErrorIs(t, err, checkpoint.ErrNotFound)
		})
	}
}

func TestStore_LatestAndList(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			_, err := store.Latest("run-1")
			assert.ErrorIs(t, err, checkpoint.ErrNotFound)

			infos, err := store.List("run-1")
			require.NoError(t, err)
			assert.Empty(t, infos)

			for _, tick := range []int{3, 1, 2} {
				require.NoError(t, store.Save("run-1", tick, []byte(fmt.Sprintf("tick-%d", tick))))
			}
			require.NoError(t, store.Save("run-2", 9, []byte("other run")))

			data, err := store.Latest("run-1")
			require.NoError(t, err)
			assert.Equal(t, []byte("tick-3"), data)

			infos, err = store.List("run-1")
			require.NoError(t, err)
			require.Len(t, infos, 3)
			for i, info := range infos {
				assert.Equal(t, i+1, info.Tick)
				assert.Equal(t, "run-1", info.RunID)
				assert.Equal(t, int64(6), info.Size)
				assert.False(t, info.Timestamp.IsZero())
			}
		})
	}
}

func TestStore_DeleteRun(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			require.NoError(t, store.Save("run-1", 1, []byte("a")))
			require.NoError(t, store.Save("run-2", 1, []byte("b")))
			require.NoError(t, store.DeleteRun("run-1"))
			require.NoError(t, store.DeleteRun("missing"))

			_, err := store.Load("run-1", 1)
			assert.ErrorIs(t, err, checkpoint.ErrNotFound)
			data, err := store.Load("run-2", 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("b"), data)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.Save("r", 1, nil), checkpoint.ErrStoreClosed)
			_, err := store.Load("r", 1)
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
			_, err = store.Latest("r")
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
			_, err = store.List("r")
			assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
			assert.ErrorIs(t, store.DeleteRun("r"), checkpoint.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			var wg sync.WaitGroup
			for g := 0; g < 10; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					runID := fmt.Sprintf("run-%d", g)
					for tick := 1; tick <= 10; tick++ {
						assert.NoError(t, store.Save(runID, tick, []byte("x")))
						_, err := store.Latest(runID)
						assert.NoError(t, err)
					}
				}(g)
			}
			wg.Wait()

			infos, err := store.List("run-7")
			require.NoError(t, err)
			assert.Len(t, infos, 10)
		})
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	buf := []byte("original")
	require.NoError(t, store.Save("r", 1, buf))
	buf[0] = 'X'

	data, err := store.Load("r", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
	data[0] = 'Y'

	again, _ := store.Load("r", 1)
	assert.Equal(t, []byte("original"), again)
	assert.Equal(t, 1, store.Len())
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	first, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Save("run-1", 4, []byte("persistent")))
	require.NoError(t, first.Close())

	second, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	data, err := second.Latest("run-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/dir/checkpoints.db")
	assert.Error(t, err)
}
