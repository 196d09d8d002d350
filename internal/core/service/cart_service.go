package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/core/domain"
	"github.com/smartcart-io/cartd/internal/obs"
	"github.com/smartcart-io/cartd/internal/port"
	"github.com/smartcart-io/cartd/internal/wire"
)

var (
	ErrDuplicateScan  = errors.New("duplicate scan")
	ErrInvalidRequest = errors.New("invalid request")
	ErrClosed         = errors.New("service closed")
)

// DefaultUserID receives weight samples from devices that were never bound
// to a session.
const DefaultUserID = "demo_user"

// Broadcaster fans a frame out to every subscriber of a session.
type Broadcaster interface {
	Broadcast(sessionID string, msg wire.Message)
}

// NopBroadcaster discards frames.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, wire.Message) {}

// AddItemRequest is a normalized scan arriving from a hardware adapter.
type AddItemRequest struct {
	UserID    string
	ProductID string
	Quantity  int
	ScanType  domain.ScanKind
	ScanValue string
	Timestamp time.Time
}

// Snapshot is a read-only view of one session cart. LastSample is the
// most recent device reading, nil when none has arrived.
type Snapshot struct {
	UserID              string
	Entries             []domain.CartEntry
	TotalQuantity       int
	TotalPrice          float64
	ExpectedWeightGrams float64
	LastSample          *domain.WeightSample
	Reconciliation      domain.Reconciliation
	UpdatedAt           time.Time
}

// session holds per-cart state. Mutated only by the service's single
// consumer goroutine; the mutex exists so snapshot readers see a
// consistent view.
type session struct {
	userID     string
	cart       *domain.CartState
	lastSample *domain.WeightSample
	lastRec    domain.Reconciliation
	updatedAt  time.Time
}

// CartService owns every session cart and applies all mutations in
// arrival order from a single event stream, so CartState needs no locks
// of its own.
type CartService struct {
	tuning     config.Tuning
	deduper    port.ScanDeduper
	catalog    port.CatalogRepository
	resolver   *ProductResolver
	reconciler *Reconciler
	bcast      Broadcaster

	events chan func()
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	mu       sync.RWMutex
	sessions map[string]*session
	devices  map[string]string // device ID -> user ID
}

func NewCartService(tuning config.Tuning, deduper port.ScanDeduper, catalog port.CatalogRepository, bcast Broadcaster, queueSize int) *CartService {
	if bcast == nil {
		bcast = NopBroadcaster{}
	}
	s := &CartService{
		tuning:     tuning,
		deduper:    deduper,
		catalog:    catalog,
		resolver:   NewProductResolver(catalog),
		reconciler: NewReconciler(tuning.TolerancePercent, tuning.SampleInterval()),
		bcast:      bcast,
		events:     make(chan func(), queueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		sessions:   make(map[string]*session),
		devices:    make(map[string]string),
	}
	go s.loop()
	return s
}

// loop is the single consumer draining the event stream.
func (s *CartService) loop() {
	defer close(s.done)
	for {
		select {
		case apply := <-s.events:
			apply()
		case <-s.quit:
			// Drain whatever was queued before the quit.
			for {
				select {
				case apply := <-s.events:
					apply()
				default:
					return
				}
			}
		}
	}
}

// Close stops the consumer after the queued events drain. Safe to call
// more than once.
func (s *CartService) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

// submit enqueues a mutation and waits for the consumer to apply it, so
// callers observe their own writes.
func (s *CartService) submit(apply func()) error {
	applied := make(chan struct{})
	wrapped := func() {
		apply()
		close(applied)
	}

	select {
	case s.events <- wrapped:
	case <-s.done:
		return ErrClosed
	}

	select {
	case <-applied:
		return nil
	case <-s.done:
		// The consumer drains on quit, so a queued event may still land.
		select {
		case <-applied:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (s *CartService) getSession(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{
			userID: userID,
			cart:   domain.NewCartState(),
		}
		s.sessions[userID] = sess
	}
	return sess
}

// BindDevice routes weight samples from a device to a session.
func (s *CartService) BindDevice(deviceID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID] = userID
}

func (s *CartService) deviceUser(deviceID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.devices[deviceID]; ok {
		return userID
	}
	return DefaultUserID
}

// AddItem deduplicates, resolves and applies one scan. Returns the
// resolved product, or ErrDuplicateScan when the cooldown window
// suppresses the read.
func (s *CartService) AddItem(ctx context.Context, req AddItemRequest) (domain.Product, error) {
	if req.UserID == "" {
		return domain.Product{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if req.ScanValue == "" && req.ProductID == "" {
		return domain.Product{}, fmt.Errorf("%w: scan_value or product_id is required", ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	if req.ScanValue != "" {
		ok, err := s.deduper.Admit(ctx, req.UserID, req.ScanValue, req.Timestamp)
		if err != nil {
			return domain.Product{}, fmt.Errorf("dedup check failed: %w", err)
		}
		if !ok {
			return domain.Product{}, ErrDuplicateScan
		}
	}

	product, err := s.identify(ctx, req)
	if err != nil {
		// Identity resolution degrades, it never rejects the scan.
		obs.Logger.Warn("catalog lookup failed, falling back to unresolved product",
			"scan_value", req.ScanValue, "product_id", req.ProductID, "error", err)
		code := req.ScanValue
		if code == "" {
			code = req.ProductID
		}
		product = domain.NewUnresolvedProduct(code)
	}

	err = s.submit(func() {
		s.applyCart(domain.CartEvent{
			UserID:   req.UserID,
			Action:   domain.CartActionAdd,
			Product:  product,
			Quantity: req.Quantity,
			At:       req.Timestamp,
		})
	})
	return product, err
}

// identify picks the resolution path for a scan: physical code through the
// resolver ladder, bare product ID through the catalog.
func (s *CartService) identify(ctx context.Context, req AddItemRequest) (domain.Product, error) {
	if req.ScanValue != "" {
		return s.resolver.Resolve(ctx, req.ScanValue, req.ScanType)
	}
	p, err := s.catalog.FindByID(ctx, req.ProductID)
	if err != nil {
		return domain.Product{}, err
	}
	if p == nil {
		return domain.NewUnresolvedProduct(req.ProductID), nil
	}
	return *p, nil
}

// ApplyCartUpdate applies a cart_update frame arriving over the channel
// (UI-originated add/remove/update).
func (s *CartService) ApplyCartUpdate(ctx context.Context, msg wire.CartUpdate) error {
	if msg.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	at := wire.FromUnixSeconds(msg.Timestamp)
	if at.IsZero() {
		at = time.Now()
	}

	switch domain.CartAction(msg.Action) {
	case domain.CartActionAdd:
		if msg.Item == nil || msg.Item.ProductID == "" {
			return fmt.Errorf("%w: add requires item.product_id", ErrInvalidRequest)
		}
		product, err := s.identify(ctx, AddItemRequest{ProductID: msg.Item.ProductID})
		if err != nil {
			obs.Logger.Warn("catalog lookup failed, falling back to unresolved product",
				"product_id", msg.Item.ProductID, "error", err)
			product = domain.NewUnresolvedProduct(msg.Item.ProductID)
		}
		qty := msg.Item.Quantity
		if qty <= 0 {
			qty = 1
		}
		return s.submit(func() {
			s.applyCart(domain.CartEvent{
				UserID: msg.UserID, Action: domain.CartActionAdd,
				Product: product, Quantity: qty, At: at,
			})
		})

	case domain.CartActionUpdate:
		if msg.ProductID == "" || msg.Quantity == nil {
			return fmt.Errorf("%w: update requires product_id and quantity", ErrInvalidRequest)
		}
		qty := *msg.Quantity
		return s.submit(func() {
			s.applyCart(domain.CartEvent{
				UserID: msg.UserID, Action: domain.CartActionUpdate,
				Product: domain.Product{ID: msg.ProductID}, Quantity: qty, At: at,
			})
		})

	case domain.CartActionRemove:
		if msg.ProductID == "" {
			return fmt.Errorf("%w: remove requires product_id", ErrInvalidRequest)
		}
		return s.submit(func() {
			s.applyCart(domain.CartEvent{
				UserID: msg.UserID, Action: domain.CartActionRemove,
				Product: domain.Product{ID: msg.ProductID}, At: at,
			})
		})

	case domain.CartActionClear:
		return s.submit(func() {
			s.applyCart(domain.CartEvent{
				UserID: msg.UserID, Action: domain.CartActionClear, At: at,
			})
		})

	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, msg.Action)
	}
}

// applyCart runs on the consumer goroutine.
func (s *CartService) applyCart(ev domain.CartEvent) {
	sess := s.getSession(ev.UserID)

	s.mu.Lock()
	switch ev.Action {
	case domain.CartActionAdd:
		sess.cart.Add(ev.Product, ev.Quantity, ev.At)
	case domain.CartActionUpdate:
		sess.cart.SetQuantity(ev.Product.ID, ev.Quantity)
	case domain.CartActionRemove:
		sess.cart.Remove(ev.Product.ID)
	case domain.CartActionClear:
		sess.cart.Clear()
	}
	now := time.Now()
	sess.lastRec = s.reconciler.Reconcile(sess.cart.ExpectedWeightGrams(), sess.lastSample, now)
	sess.updatedAt = now
	s.mu.Unlock()

	frame := wire.CartUpdate{
		UserID:    ev.UserID,
		Action:    string(ev.Action),
		Timestamp: wire.UnixSeconds(ev.At),
	}
	switch ev.Action {
	case domain.CartActionAdd:
		frame.Item = &wire.CartItem{ProductID: ev.Product.ID, Quantity: ev.Quantity}
	case domain.CartActionUpdate:
		qty := ev.Quantity
		frame.ProductID = ev.Product.ID
		frame.Quantity = &qty
	case domain.CartActionRemove:
		frame.ProductID = ev.Product.ID
	}
	s.bcast.Broadcast(ev.UserID, frame)

	obs.Logger.Info("cart_event",
		"user_id", ev.UserID,
		"action", string(ev.Action),
		"product_id", ev.Product.ID,
		"quantity", ev.Quantity,
		"unresolved", ev.Product.Unresolved,
	)
}

// UpdateWeight records one load-cell reading and reconciles the owning
// session. The device applies its own smoothing and declares stability,
// so the reported value IS the measurement; it is stored and reconciled
// exactly as received.
func (s *CartService) UpdateWeight(ctx context.Context, sample domain.WeightSample) error {
	if sample.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidRequest)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	userID := s.deviceUser(sample.DeviceID)

	return s.submit(func() {
		sess := s.getSession(userID)

		s.mu.Lock()
		live := sample
		sess.lastSample = &live

		now := time.Now()
		sess.lastRec = s.reconciler.Reconcile(sess.cart.ExpectedWeightGrams(), sess.lastSample, now)
		sess.updatedAt = now
		rec := sess.lastRec
		s.mu.Unlock()

		s.bcast.Broadcast(userID, wire.WeightUpdate{
			DeviceID:  sample.DeviceID,
			Weight:    sample.Grams,
			Stable:    sample.Stable,
			Timestamp: wire.UnixSeconds(sample.Timestamp),
		})

		obs.Logger.Debug("weight_sample",
			"user_id", userID,
			"device_id", sample.DeviceID,
			"grams", sample.Grams,
			"stable", sample.Stable,
			"reason", sample.Reason,
			"match", rec.Match,
		)
	})
}

// Tare discards the current reading of a device; the session shows no
// measurement until the device reports again.
func (s *CartService) Tare(deviceID string) error {
	userID := s.deviceUser(deviceID)
	return s.submit(func() {
		sess := s.getSession(userID)
		s.mu.Lock()
		sess.lastSample = nil
		sess.updatedAt = time.Now()
		s.mu.Unlock()
	})
}

// Calibrate records that the device's scale was just set against a known
// reference weight.
func (s *CartService) Calibrate(deviceID string, knownGrams float64) error {
	userID := s.deviceUser(deviceID)
	return s.submit(func() {
		sess := s.getSession(userID)
		s.mu.Lock()
		sess.lastSample = &domain.WeightSample{
			DeviceID:  deviceID,
			Grams:     knownGrams,
			Stable:    true,
			Timestamp: time.Now(),
			Reason:    "calibration",
		}
		sess.updatedAt = time.Now()
		s.mu.Unlock()
	})
}

// Checkout clears the session cart and announces it as a clear action.
// Payment is an external collaborator; this only completes the in-memory
// lifecycle.
func (s *CartService) Checkout(userID string) error {
	err := s.submit(func() {
		s.applyCart(domain.CartEvent{
			UserID: userID,
			Action: domain.CartActionClear,
			At:     time.Now(),
		})
	})
	if err == nil {
		obs.Logger.Info("cart_checkout", "user_id", userID)
	}
	return err
}

// Snapshot returns a consistent copy of a session's cart view, with a
// fresh reconciliation so sensor silence shows up as simulated rather
// than stale.
func (s *CartService) Snapshot(userID string) Snapshot {
	sess := s.getSession(userID)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.WeightSample
	if sess.lastSample != nil {
		cp := *sess.lastSample
		last = &cp
	}
	return Snapshot{
		UserID:              userID,
		Entries:             sess.cart.Entries(),
		TotalQuantity:       sess.cart.TotalQuantity(),
		TotalPrice:          sess.cart.TotalPrice(),
		ExpectedWeightGrams: sess.cart.ExpectedWeightGrams(),
		LastSample:          last,
		Reconciliation:      s.reconciler.Reconcile(sess.cart.ExpectedWeightGrams(), sess.lastSample, time.Now()),
		UpdatedAt:           sess.updatedAt,
	}
}
