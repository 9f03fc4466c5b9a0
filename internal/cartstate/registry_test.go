package cartstate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, mem *storage.Memory, size int) *Registry {
	t.Helper()
	reg, err := NewRegistry(RegistryOptions{
		Storage:    mem,
		KeyPrefix:  "cart",
		MinorUnits: 2,
		Size:       size,
		Sink:       &notifications.Recorder{},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistryIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	reg := newTestRegistry(t, mem, 8)

	alice, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := reg.Get(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.AddToCart(ctx, filter, 1).Err)
	assert.True(t, bob.Snapshot().Cart.IsEmpty())

	_, ok := mem.Raw("cart:alice")
	assert.True(t, ok)
	_, ok = mem.Raw("cart:bob")
	assert.False(t, ok)
}

func TestRegistryReturnsSameProvider(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, storage.NewMemory(), 8)

	first, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := reg.Get(ctx, " s1 ")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, StateReady, first.State())
}

func TestRegistryConcurrentFirstLoadSharesProvider(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, storage.NewMemory(), 8)

	providers := make([]*Provider, 20)
	var wg sync.WaitGroup
	for i := range providers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := reg.Get(ctx, "shared")
			if err == nil {
				providers[i] = p
			}
		}(i)
	}
	wg.Wait()

	for _, p := range providers {
		assert.Same(t, providers[0], p)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryEvictedSessionReloadsFromStorage(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, storage.NewMemory(), 1)

	first, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, first.AddToCart(ctx, filter, 2).Err)

	_, err = reg.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	again, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Equal(t, 2, again.Snapshot().Cart.ItemCount)

	reg.Forget("s1")
	assert.Equal(t, 0, reg.Len())
}

// ctxStorage fails reads on a finished context, like network-backed stores.
type ctxStorage struct {
	*storage.Memory
}

func (c ctxStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Memory.Load(ctx, key)
}

func seedTwoFilters(t *testing.T, backend storage.Storage, key string) {
	t.Helper()
	store, err := cart.NewStore(backend, cart.Options{Key: key, MinorUnits: 2})
	require.NoError(t, err)
	_, err = store.AddToCart(context.Background(), filter, 2)
	require.NoError(t, err)
}

func TestRegistryFirstLoadIgnoresCallerCancellation(t *testing.T) {
	mem := storage.NewMemory()
	seedTwoFilters(t, mem, "cart:s1")

	reg, err := NewRegistry(RegistryOptions{Storage: ctxStorage{Memory: mem}, KeyPrefix: "cart", Size: 8})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	first, err := reg.Get(cancelled, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Snapshot().Cart.ItemCount)

	later, err := reg.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Same(t, first, later)
	assert.Equal(t, 2, later.Snapshot().Cart.ItemCount)
}

func TestRegistryDoesNotCacheFailedLoad(t *testing.T) {
	ctx := context.Background()
	backend := &flakyLoads{Memory: storage.NewMemory(), failures: 1}
	seedTwoFilters(t, backend.Memory, "cart:s1")

	reg, err := NewRegistry(RegistryOptions{Storage: backend, KeyPrefix: "cart", Size: 8})
	require.NoError(t, err)

	degraded, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, degraded.Snapshot().Cart.IsEmpty())
	assert.Equal(t, 0, reg.Len())

	recovered, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, degraded, recovered)
	assert.Equal(t, 2, recovered.Snapshot().Cart.ItemCount)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryRejectsBadSessions(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, storage.NewMemory(), 8)

	_, err := reg.Get(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = reg.Get(ctx, strings.Repeat("x", maxSessionLength+1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewRegistryValidatesOptions(t *testing.T) {
	_, err := NewRegistry(RegistryOptions{KeyPrefix: "cart"})
	assert.Error(t, err)
	_, err = NewRegistry(RegistryOptions{Storage: storage.NewMemory()})
	assert.Error(t, err)

	reg, err := NewRegistry(RegistryOptions{Storage: storage.NewMemory(), KeyPrefix: "cart"})
	require.NoError(t, err)
	assert.Equal(t, "cart:abc", reg.StorageKey("abc"))
}
