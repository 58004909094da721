package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/oklog/ulid/v2"
)

// memStore backs every fake repository. Writes are applied to copies so that
// memTx can snapshot and restore the whole store on rollback.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	services map[string]domain.Service
	orders   map[string]domain.Order
	payments map[string]domain.Payment
	events   map[string]domain.WebhookEvent
	tokens   map[string]domain.RefreshToken
	seq      int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]domain.User{},
		services: map[string]domain.Service{},
		orders:   map[string]domain.Order{},
		payments: map[string]domain.Payment{},
		events:   map[string]domain.WebhookEvent{},
		tokens:   map[string]domain.RefreshToken{},
	}
}

type memSnapshot struct {
	users    map[string]domain.User
	services map[string]domain.Service
	orders   map[string]domain.Order
	payments map[string]domain.Payment
	events   map[string]domain.WebhookEvent
	tokens   map[string]domain.RefreshToken
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users:    copyMap(s.users),
		services: copyMap(s.services),
		orders:   copyMap(s.orders),
		payments: copyMap(s.payments),
		events:   copyMap(s.events),
		tokens:   copyMap(s.tokens),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.services = snap.services
	s.orders = snap.orders
	s.payments = snap.payments
	s.events = snap.events
	s.tokens = snap.tokens
}

// memTx serialises transactions and rolls the store back when fn fails
type memTx struct {
	store *memStore
	mu    sync.Mutex
	count int
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// =============================================================================
// Users and ledger
// =============================================================================

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r memUserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r memUserRepo) mutate(id string, fn func(u *domain.User) error) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return nil, err
	}
	r.s.users[id] = u
	return &u, nil
}

func (r memUserRepo) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	return r.mutate(id, func(u *domain.User) error {
		setStr := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		setStr(&u.FirstName, update.FirstName)
		setStr(&u.LastName, update.LastName)
		setStr(&u.Phone, update.Phone)
		setStr(&u.Avatar, update.Avatar)
		if update.Preferences != nil {
			u.Preferences = *update.Preferences
		}
		if update.SocialMedia != nil {
			u.SocialMedia = *update.SocialMedia
		}
		return nil
	})
}

func (r memUserRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	_, err := r.mutate(id, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (r memUserRepo) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	return r.mutate(id, func(u *domain.User) error {
		u.IsActive = active
		return nil
	})
}

func (r memUserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.mutate(id, func(u *domain.User) error {
		u.LastLoginAt = &at
		return nil
	})
	return err
}

func (r memUserRepo) List(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]*domain.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*domain.User
	for _, u := range r.s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Username+" "+u.Email, filter.Search) {
			continue
		}
		copied := u
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return pageOf(all, page), int64(len(all)), nil
}

func (r memUserRepo) Debit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	u, err := r.mutate(userID, func(u *domain.User) error {
		if !u.IsActive || u.Balance < amount {
			return domain.NewInsufficientFundsError(amount, u.Balance)
		}
		u.Balance -= amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Balance{Balance: u.Balance, TotalSpent: u.TotalSpent}, nil
}

func (r memUserRepo) Credit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	u, err := r.mutate(userID, func(u *domain.User) error {
		u.Balance += amount
		u.TotalSpent += amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Balance{Balance: u.Balance, TotalSpent: u.TotalSpent}, nil
}

func (r memUserRepo) Refund(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	u, err := r.mutate(userID, func(u *domain.User) error {
		u.Balance += amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Balance{Balance: u.Balance, TotalSpent: u.TotalSpent}, nil
}

func (r memUserRepo) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{Balance: u.Balance, TotalSpent: u.TotalSpent}, nil
}

// =============================================================================
// Catalog
// =============================================================================

type memServiceRepo struct{ s *memStore }

func (r memServiceRepo) Create(ctx context.Context, service *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if service.ID == "" {
		service.ID = ulid.Make().String()
	}
	r.s.services[service.ID] = *service
	return nil
}

func (r memServiceRepo) CreateMany(ctx context.Context, services []*domain.Service) error {
	for _, svc := range services {
		if err := r.Create(ctx, svc); err != nil {
			return err
		}
	}
	return nil
}

func (r memServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &svc, nil
}

func (r memServiceRepo) active(filter domain.ServiceFilter) []*domain.Service {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Service
	for _, svc := range r.s.services {
		if !svc.IsActive {
			continue
		}
		if filter.Platform != "" && svc.Platform != filter.Platform {
			continue
		}
		if filter.Category != "" && svc.Category != filter.Category {
			continue
		}
		copied := svc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func (r memServiceRepo) ListActive(ctx context.Context, filter domain.ServiceFilter, page domain.Page) ([]*domain.Service, int64, error) {
	all := r.active(filter)
	return pageOf(all, page), int64(len(all)), nil
}

func (r memServiceRepo) Platforms(ctx context.Context) ([]domain.PlatformSummary, error) {
	var out []domain.PlatformSummary
	for _, svc := range r.active(domain.ServiceFilter{}) {
		if len(out) == 0 || out[len(out)-1].Name != svc.Platform {
			out = append(out, domain.PlatformSummary{Name: svc.Platform})
		}
		p := &out[len(out)-1]
		p.ServiceCount++
		if len(p.Categories) == 0 || p.Categories[len(p.Categories)-1] != svc.Category {
			p.Categories = append(p.Categories, svc.Category)
		}
	}
	return out, nil
}

func (r memServiceRepo) Update(ctx context.Context, service *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[service.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.services[service.ID] = *service
	return nil
}

func (r memServiceRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return domain.ErrNotFound
	}
	svc.IsActive = active
	r.s.services[id] = svc
	return nil
}

func (r memServiceRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.services)), nil
}

// =============================================================================
// Orders
// =============================================================================

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if order.ID == "" {
		order.ID = ulid.Make().String()
	}
	r.s.orders[order.ID] = *order
	return nil
}

func (r memOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r memOrderRepo) matching(filter domain.OrderFilter, since *time.Time) []*domain.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if since != nil && o.CreatedAt.Before(*since) {
			continue
		}
		copied := o
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out
}

func (r memOrderRepo) List(ctx context.Context, filter domain.OrderFilter, page domain.Page) ([]*domain.Order, int64, error) {
	all := r.matching(filter, nil)
	return pageOf(all, page), int64(len(all)), nil
}

func (r memOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order, guard domain.OrderGuard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[order.ID]
	if !ok || stored.Guard() != guard {
		return domain.NewError(domain.KindConflict, "order was modified concurrently")
	}
	r.s.orders[order.ID] = *order
	return nil
}

func (r memOrderRepo) SetPaymentOutcome(ctx context.Context, orderID, paymentStatus, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok || o.PaymentStatus == domain.PaymentStatusPaid {
		return nil
	}
	o.PaymentStatus = paymentStatus
	o.Status = status
	r.s.orders[orderID] = o
	return nil
}

func (r memOrderRepo) NextSequence(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	return r.s.seq, nil
}

func (r memOrderRepo) StatusBreakdown(ctx context.Context, userID string, since *time.Time) ([]domain.StatusBreakdown, error) {
	byStatus := map[string]*domain.StatusBreakdown{}
	var out []domain.StatusBreakdown
	for _, o := range r.matching(domain.OrderFilter{UserID: userID}, since) {
		b, ok := byStatus[o.Status]
		if !ok {
			b = &domain.StatusBreakdown{Status: o.Status}
			byStatus[o.Status] = b
		}
		b.Count++
		b.Amount += o.TotalAmount
	}
	for _, status := range domain.OrderStatuses {
		if b, ok := byStatus[status]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

// =============================================================================
// Payments and webhook events
// =============================================================================

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.payments[payment.PaymentID]; exists {
		return domain.ErrConflict
	}
	if payment.ID == "" {
		payment.ID = ulid.Make().String()
	}
	r.s.payments[payment.PaymentID] = *payment
	return nil
}

func (r memPaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memPaymentRepo) all(match func(domain.Payment) bool) []*domain.Payment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.s.payments {
		if match(p) {
			copied := p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID > out[j].PaymentID })
	return out
}

func (r memPaymentRepo) ListByUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Payment, int64, error) {
	all := r.all(func(p domain.Payment) bool { return p.UserID == userID })
	return pageOf(all, page), int64(len(all)), nil
}

func (r memPaymentRepo) AttachCheckout(ctx context.Context, paymentID, checkoutID, checkoutURL string, response map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.CheckoutID = checkoutID
	p.CheckoutURL = checkoutURL
	p.GatewayResponse = response
	r.s.payments[paymentID] = p
	return nil
}

func (r memPaymentRepo) Transition(ctx context.Context, paymentID string, t domain.PaymentTransition) (*domain.Payment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return &p, false, nil
	}
	p.Status = t.Status
	p.FailureReason = t.FailureReason
	p.WebhookData = t.WebhookData
	p.UpdatedAt = t.At
	if t.Status == domain.PaymentStatusPaid {
		at := t.At
		p.PaidAt = &at
	}
	r.s.payments[paymentID] = p
	return &p, true, nil
}

func (r memPaymentRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]*domain.Payment, error) {
	out := r.all(func(p domain.Payment) bool {
		return p.Status == domain.PaymentStatusPending && domain.IsGatewayMethod(p.Method) && p.CreatedAt.Before(cutoff)
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memEventRepo struct{ s *memStore }

func (r memEventRepo) Record(ctx context.Context, event *domain.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[event.ID]; ok {
		return domain.ErrDuplicateEvent
	}
	r.s.events[event.ID] = *event
	return nil
}

// =============================================================================
// Refresh tokens
// =============================================================================

type memTokenRepo struct{ s *memStore }

func (r memTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = ulid.Make().String()
	r.s.tokens[token.TokenHash] = *token
	return nil
}

func (r memTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[hash]
	if !ok || t.Revoked {
		return nil, nil
	}
	return &t, nil
}

func (r memTokenRepo) Revoke(ctx context.Context, hash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	r.s.tokens[hash] = t
	return true, nil
}

func (r memTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for hash, t := range r.s.tokens {
		if t.UserID == userID {
			t.Revoked = true
			r.s.tokens[hash] = t
		}
	}
	return nil
}

func pageOf[T any](items []T, page domain.Page) []T {
	start := page.Skip()
	if start >= int64(len(items)) {
		return []T{}
	}
	end := start + page.Limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[start:end]
}
