// Package cart is the cart store: the single authority that reads, validates,
// mutates and persists a visitor's cart record. It keeps no state between
// calls; every operation loads the stored record, computes the next one and
// writes it back in full before returning it.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/go-playground/validator/v10"
)

const (
	OpGetCart        = "get_cart"
	OpAddToCart      = "add_to_cart"
	OpUpdateQuantity = "update_quantity"
	OpRemoveFromCart = "remove_from_cart"
	OpClearCart      = "clear_cart"
)

const DefaultMinorUnits int32 = 2

// Options configures a Store.
type Options struct {
	// Key is the storage key holding this cart's record.
	Key        string
	MinorUnits int32
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics
}

// Store owns one cart record in a storage backend.
type Store struct {
	storage    storage.Storage
	key        string
	minorUnits int32
	logg       *logger.Logger
	metrics    *metrics.CartMetrics
	validate   *validator.Validate
}

// NewStore builds a store over the provided backend.
func NewStore(backend storage.Storage, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("cart storage required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("cart storage key required")
	}
	if opts.MinorUnits < 0 {
		return nil, fmt.Errorf("minor units must be non-negative")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		storage:    backend,
		key:        opts.Key,
		minorUnits: opts.MinorUnits,
		logg:       logg,
		metrics:    opts.Metrics,
		validate:   newValidator(),
	}, nil
}

// Key returns the storage key of the record this store manages.
func (s *Store) Key() string {
	return s.key
}

// GetCart returns the persisted cart with derived fields rebuilt. It never
// fails: a missing, unparsable or unreadable record reads as an empty cart.
func (s *Store) GetCart(ctx context.Context) Cart {
	cart, _ := s.LoadCart(ctx)
	return cart
}

// LoadCart is GetCart that also reports an unreadable backend. The returned
// cart is the same degraded empty cart GetCart would produce.
func (s *Store) LoadCart(ctx context.Context) (Cart, error) {
	start := time.Now()
	items, err := s.load(ctx)
	if err != nil {
		ctx = s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		s.logg.Warn(s.logg.WithField(ctx, "cart_key", s.key), "cart.load_failed")
		items = nil
	}
	s.observe(OpGetCart, start, err)
	return newCart(items, s.minorUnits), err
}

// AddToCart adds quantity units of product. An existing line grows by
// quantity; a new line is appended. Either way the result is clamped to
// [1, stock].
func (s *Store) AddToCart(ctx context.Context, product Product, quantity int) (Cart, error) {
	start := time.Now()
	cart, err := s.addToCart(ctx, product, quantity)
	s.observe(OpAddToCart, start, err)
	return cart, err
}

func (s *Store) addToCart(ctx context.Context, product Product, quantity int) (Cart, error) {
	product = normalizeProduct(product)
	if err := s.validateProduct(product); err != nil {
		return Cart{}, err
	}
	if quantity < 1 {
		quantity = 1
	}

	items, err := s.load(ctx)
	if err != nil {
		return Cart{}, err
	}

	idx := indexOf(items, product.ProductID)
	if idx >= 0 {
		requested := addQuantity(items[idx].Quantity, quantity)
		items[idx].Quantity = clamp(requested, items[idx].Stock)
		s.logClamp(ctx, product.ProductID, requested, items[idx].Quantity)
	} else {
		applied := clamp(quantity, product.Stock)
		s.logClamp(ctx, product.ProductID, quantity, applied)
		items = append(items, Item{
			ProductID: product.ProductID,
			Title:     product.Title,
			Price:     product.Price,
			Image:     product.Image,
			Stock:     product.Stock,
			Quantity:  applied,
		})
	}

	return s.persist(ctx, items)
}

// UpdateQuantity sets the quantity of an existing line. quantity <= 0
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (Cart, error) {
	start := time.Now()
	cart, err := s.updateQuantity(ctx, productID, quantity)
	s.observe(OpUpdateQuantity, start, err)
	return cart, err
}

func (s *Store) updateQuantity(ctx context.Context, productID string, quantity int) (Cart, error) {
	items, err := s.load(ctx)
	if err != nil {
		return Cart{}, err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").
			WithDetails(map[string]any{"productId": productID})
	}

	if quantity <= 0 {
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = clamp(quantity, items[idx].Stock)
		s.logClamp(ctx, productID, quantity, items[idx].Quantity)
	}

	return s.persist(ctx, items)
}

// RemoveFromCart deletes the line for productID. Removing an absent line is
// not an error; the record is still written.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) (Cart, error) {
	start := time.Now()
	cart, err := s.removeFromCart(ctx, productID)
	s.observe(OpRemoveFromCart, start, err)
	return cart, err
}

func (s *Store) removeFromCart(ctx context.Context, productID string) (Cart, error) {
	items, err := s.load(ctx)
	if err != nil {
		return Cart{}, err
	}
	if idx := indexOf(items, productID); idx >= 0 {
		items = append(items[:idx], items[idx+1:]...)
	}
	return s.persist(ctx, items)
}

// ClearCart resets the record to {"items":[]}.
func (s *Store) ClearCart(ctx context.Context) (Cart, error) {
	start := time.Now()
	cart, err := s.persist(ctx, []Item{})
	s.observe(OpClearCart, start, err)
	return cart, err
}

// load reads and repairs the stored items. A missing or corrupt record reads
// as empty; only an unreachable backend is an error, so a mutation never
// overwrites a record it could not read.
func (s *Store) load(ctx context.Context) ([]Item, error) {
	payload, err := s.storage.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []Item{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "read cart")
	}
	items, dropped, err := decodeRecord(payload)
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"cart_key": s.key, "error": err.Error()})
		s.logg.Warn(ctx, "cart.corrupt_record")
		return []Item{}, nil
	}
	if dropped > 0 {
		ctx = s.logg.WithFields(ctx, map[string]any{"cart_key": s.key, "dropped": dropped})
		s.logg.Warn(ctx, "cart.items_repaired")
	}
	return items, nil
}

// persist performs the single full-record write of a mutation.
func (s *Store) persist(ctx context.Context, items []Item) (Cart, error) {
	payload, err := encodeRecord(items)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "encode cart")
	}
	if err := s.storage.Save(ctx, s.key, payload); err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save cart")
	}
	return newCart(items, s.minorUnits), nil
}

func (s *Store) logClamp(ctx context.Context, productID string, requested, applied int) {
	if requested == applied {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_key":   s.key,
		"product_id": productID,
		"requested":  requested,
		"applied":    applied,
	})
	s.logg.Info(ctx, "cart.quantity_clamped")
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(op, string(pkgerrors.CodeOf(err)))
		return
	}
	s.metrics.IncSuccess(op)
}

func indexOf(items []Item, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
