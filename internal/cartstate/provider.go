// Package cartstate holds the in-process view of a cart: a provider that
// loads the store once, runs mutation commands against it, publishes
// immutable snapshots and turns store failures into notifications.
package cartstate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// CartStore is the subset of *cart.Store the provider drives.
type CartStore interface {
	LoadCart(ctx context.Context) (cart.Cart, error)
	AddToCart(ctx context.Context, product cart.Product, quantity int) (cart.Cart, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.Cart, error)
	RemoveFromCart(ctx context.Context, productID string) (cart.Cart, error)
	ClearCart(ctx context.Context) (cart.Cart, error)
}

// State is the provider lifecycle. Ready is terminal.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot is a published view of the cart. Cart is a private copy.
type Snapshot struct {
	Cart    cart.Cart `json:"cart"`
	Loading bool      `json:"loading"`
	Version uint64    `json:"version"`
}

// Outcome is the result of a command. Err is the handled store error, kept
// for callers that map it further (e.g. to an HTTP status).
type Outcome struct {
	Snapshot     Snapshot
	Notification notifications.Notification
	Err          error
}

// Failed reports whether the command did not apply.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

const (
	TitleAdded   = "Added to cart"
	TitleUpdated = "Cart updated"
	TitleRemoved = "Removed from cart"
	TitleCleared = "Cart cleared"
)

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	Sink   notifications.Sink
	Logger *logger.Logger
}

// Provider serializes commands against one cart store.
type Provider struct {
	store CartStore
	sink  notifications.Sink
	logg  *logger.Logger

	// cmdMu orders init and commands; mu guards the published state.
	cmdMu sync.Mutex
	mu    sync.RWMutex

	state    State
	snapshot Snapshot
	loadErr  error
	subs     map[uint64]func(Snapshot)
	nextSub  uint64
}

// NewProvider builds a provider in the Uninitialized state.
func NewProvider(store CartStore, opts ProviderOptions) (*Provider, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart store required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = notifications.Discard
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Provider{
		store: store,
		sink:  sink,
		logg:  logg,
		snapshot: Snapshot{
			Cart: cart.Cart{Items: []cart.Item{}},
		},
		subs: map[uint64]func(Snapshot){},
	}, nil
}

// Init loads the stored cart the first time it is called and is a no-op
// afterwards.
func (p *Provider) Init(ctx context.Context) Snapshot {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	p.initLocked(ctx)
	return p.Snapshot()
}

func (p *Provider) initLocked(ctx context.Context) {
	p.mu.RLock()
	state := p.state
	p.mu.RUnlock()
	if state != StateUninitialized {
		return
	}

	p.publish(StateLoading, func(s *Snapshot) { s.Loading = true })
	loaded, err := p.store.LoadCart(ctx)
	p.publish(StateReady, func(s *Snapshot) {
		s.Cart = loaded
		s.Loading = false
		p.loadErr = err
	})
	p.logg.Debug(p.logg.WithField(ctx, "item_count", loaded.ItemCount), "cart.provider_ready")
}

// State returns the lifecycle state.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LoadErr reports whether the latest read of the stored cart failed, in which
// case the snapshot holds the degraded empty cart.
func (p *Provider) LoadErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadErr
}

// Snapshot returns the current published snapshot.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copySnapshot()
}

// Subscribe registers fn to receive every snapshot published from now on.
// fn runs synchronously on the publishing goroutine and must not call
// provider commands. The returned func unsubscribes.
func (p *Provider) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// AddToCart adds quantity units of product.
func (p *Provider) AddToCart(ctx context.Context, product cart.Product, quantity int) Outcome {
	return p.run(ctx, cart.OpAddToCart, TitleAdded, func(ctx context.Context) (cart.Cart, error) {
		return p.store.AddToCart(ctx, product, quantity)
	})
}

// UpdateQuantity sets the quantity of a line; quantity <= 0 removes it.
func (p *Provider) UpdateQuantity(ctx context.Context, productID string, quantity int) Outcome {
	return p.run(ctx, cart.OpUpdateQuantity, TitleUpdated, func(ctx context.Context) (cart.Cart, error) {
		return p.store.UpdateQuantity(ctx, productID, quantity)
	})
}

// RemoveFromCart removes a line if present.
func (p *Provider) RemoveFromCart(ctx context.Context, productID string) Outcome {
	return p.run(ctx, cart.OpRemoveFromCart, TitleRemoved, func(ctx context.Context) (cart.Cart, error) {
		return p.store.RemoveFromCart(ctx, productID)
	})
}

// ClearCart empties the cart.
func (p *Provider) ClearCart(ctx context.Context) Outcome {
	return p.run(ctx, cart.OpClearCart, TitleCleared, func(ctx context.Context) (cart.Cart, error) {
		return p.store.ClearCart(ctx)
	})
}

// RefreshCart re-reads the stored record into the snapshot. It emits no
// notification.
func (p *Provider) RefreshCart(ctx context.Context) Outcome {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	p.initLocked(ctx)

	loaded, err := p.store.LoadCart(ctx)
	snap := p.publish(StateReady, func(s *Snapshot) {
		s.Cart = loaded
		p.loadErr = err
	})
	return Outcome{Snapshot: snap}
}

func (p *Provider) run(ctx context.Context, op, successTitle string, fn func(context.Context) (cart.Cart, error)) Outcome {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	p.initLocked(ctx)

	next, err := fn(ctx)
	if err != nil {
		note := FailureNotification(err)
		logCtx := p.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		logCtx = p.logg.WithField(logCtx, "operation", op)
		if pkgerrors.CodeOf(err) == pkgerrors.CodePersistence {
			p.logg.Error(logCtx, "cart.command_failed", err)
		} else {
			p.logg.Warn(logCtx, "cart.command_rejected")
		}
		p.sink.Notify(ctx, note)
		return Outcome{Snapshot: p.Snapshot(), Notification: note, Err: err}
	}

	snap := p.publish(StateReady, func(s *Snapshot) {
		s.Cart = next
		p.loadErr = nil
	})
	note := notifications.Notification{Title: successTitle, Severity: notifications.SeveritySuccess}
	p.sink.Notify(ctx, note)
	return Outcome{Snapshot: snap, Notification: note}
}

// publish applies mutate under the state lock, bumps the version and hands
// a copy to every subscriber after releasing it.
func (p *Provider) publish(state State, mutate func(*Snapshot)) Snapshot {
	p.mu.Lock()
	mutate(&p.snapshot)
	p.snapshot.Version++
	p.state = state
	snap := p.copySnapshot()
	subs := make([]func(Snapshot), 0, len(p.subs))
	ids := make([]uint64, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		subs = append(subs, p.subs[id])
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(copyOf(snap))
	}
	return snap
}

func (p *Provider) copySnapshot() Snapshot {
	return copyOf(p.snapshot)
}

func copyOf(s Snapshot) Snapshot {
	s.Cart = s.Cart.Clone()
	return s
}

// FailureNotification maps a command error to the notification shown for it.
func FailureNotification(err error) notifications.Notification {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation:
		return notifications.Notification{
			Title:       "Invalid item",
			Description: validationDescription(err),
			Severity:    notifications.SeverityWarning,
		}
	case pkgerrors.CodeNotFound:
		return notifications.Notification{
			Title:       "Item not in cart",
			Description: "The item is no longer in your cart.",
			Severity:    notifications.SeverityWarning,
		}
	case pkgerrors.CodePersistence:
		return notifications.Notification{
			Title:       "Cart not saved",
			Description: "Your cart could not be saved. Please try again.",
			Severity:    notifications.SeverityError,
		}
	}
	return notifications.Notification{
		Title:       "Something went wrong",
		Description: "Please try again.",
		Severity:    notifications.SeverityError,
	}
}

func validationDescription(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err.Error()
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || len(details) == 0 {
		return typed.Message()
	}
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		msg := details[field]
		if field == "stock" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, field+" "+msg)
	}
	return strings.Join(parts, "; ")
}
