package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/redis"
	"delivery/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository. The
// conditional updates hold the mutex across guard and write, matching
// the atomicity the real implementation gets from SQL.
type MockOrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	history map[string][]domain.StatusHistoryEntry

	// Counters for verification
	CreateCallCount     int32
	ClaimCallCount      int32
	TransitionCallCount int32

	// Error injection
	CreateError     error
	ClaimError      error
	TransitionError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:  make(map[string]*domain.Order),
		history: make(map[string][]domain.StatusHistoryEntry),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	m.history[order.ID] = append(m.history[order.ID], domain.StatusHistoryEntry{
		OrderID:    order.ID,
		Status:     order.Status,
		RecordedAt: order.CreatedAt,
	})
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) ClaimPending(ctx context.Context, orderID, driverID string, at time.Time) (*domain.Order, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return nil, m.ClaimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return nil, repository.ErrConflict
	}
	order.Status = domain.OrderStatusDriverAssigned
	order.DriverID = driverID
	order.AcceptedAt = at
	m.history[orderID] = append(m.history[orderID], domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     order.Status,
		RecordedAt: at,
	})
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) TransitionStatus(ctx context.Context, orderID, driverID string, from domain.OrderStatus, upd repository.TransitionUpdate) (*domain.Order, error) {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	if m.TransitionError != nil {
		return nil, m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if order.Status != from || order.DriverID != driverID {
		return nil, repository.ErrConflict
	}
	order.Status = upd.To
	if upd.SetPickedUp {
		order.PickedUpAt = upd.At
	}
	if upd.SetDelivered {
		order.DeliveredAt = upd.At
	}
	m.history[orderID] = append(m.history[orderID], domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     upd.To,
		Lat:        upd.Lat,
		Lng:        upd.Lng,
		Note:       upd.Note,
		RecordedAt: upd.At,
	})
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) Cancel(ctx context.Context, orderID, reason string, at time.Time) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !order.Status.Cancellable() {
		return nil, repository.ErrConflict
	}
	order.Status = domain.OrderStatusCancelled
	order.DriverID = ""
	order.CancelReason = reason
	order.CancelledAt = at
	m.history[orderID] = append(m.history[orderID], domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     order.Status,
		Note:       reason,
		RecordedAt: at,
	})
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	order.PaymentStatus = status
	return nil
}

func (m *MockOrderRepository) History(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]domain.StatusHistoryEntry, len(m.history[orderID]))
	copy(entries, m.history[orderID])
	return entries, nil
}

// GetOrder returns the order by ID (for test assertions).
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// HistoryLen returns the number of history entries for an order.
func (m *MockOrderRepository) HistoryLen(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history[id])
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	SetOnlineCallCount           int32
	IncrementDeliveriesCallCount int32
	RecordRatingCallCount        int32
	UpdateLocationCallCount      int32

	// Error injection
	SetOnlineError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	atomic.AddInt32(&m.SetOnlineCallCount, 1)
	if m.SetOnlineError != nil {
		return m.SetOnlineError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Online = online
	return nil
}

func (m *MockDriverRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.LastLat = lat
	driver.LastLng = lng
	return nil
}

func (m *MockDriverRepository) IncrementDeliveries(ctx context.Context, id string) error {
	atomic.AddInt32(&m.IncrementDeliveriesCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.TotalDeliveries++
	return nil
}

func (m *MockDriverRepository) RecordRating(ctx context.Context, id string, rating int) error {
	atomic.AddInt32(&m.RecordRatingCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Rating = (driver.Rating*float64(driver.RatingCount) + float64(rating)) / float64(driver.RatingCount+1)
	driver.RatingCount++
	return nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK PROMO REPOSITORY
// ──────────────────────────────────────────────

// MockPromoRepository is a mock implementation of PromoRepository. The
// usage increment holds the mutex across the cap check and the write.
type MockPromoRepository struct {
	mu     sync.Mutex
	promos map[string]*domain.PromoCode

	// Counters for verification
	IncrementCallCount int32
	ReleaseCallCount   int32
}

// NewMockPromoRepository creates a new mock promo repository.
func NewMockPromoRepository() *MockPromoRepository {
	return &MockPromoRepository{
		promos: make(map[string]*domain.PromoCode),
	}
}

// AddPromo adds a promo code to the mock repository.
func (m *MockPromoRepository) AddPromo(p *domain.PromoCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[p.Code] = p
}

func (m *MockPromoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPromoRepository) IncrementUsage(ctx context.Context, code string) error {
	atomic.AddInt32(&m.IncrementCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok {
		return repository.ErrNotFound
	}
	if !p.Active {
		return repository.ErrConflict
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return repository.ErrConflict
	}
	p.UsedCount++
	return nil
}

func (m *MockPromoRepository) ReleaseUsage(ctx context.Context, code string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok {
		return repository.ErrNotFound
	}
	if p.UsedCount > 0 {
		p.UsedCount--
	}
	return nil
}

// UsedCount returns the current usage counter (for test assertions).
func (m *MockPromoRepository) UsedCount(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.promos[code]; ok {
		return p.UsedCount
	}
	return 0
}

// ──────────────────────────────────────────────
// MOCK CHAT REPOSITORY
// ──────────────────────────────────────────────

// MockChatRepository is a mock implementation of ChatRepository.
type MockChatRepository struct {
	mu       sync.RWMutex
	messages map[string][]*domain.ChatMessage

	// Counters for verification
	AppendCallCount   int32
	MarkReadCallCount int32
}

// NewMockChatRepository creates a new mock chat repository.
func NewMockChatRepository() *MockChatRepository {
	return &MockChatRepository{
		messages: make(map[string][]*domain.ChatMessage),
	}
}

func (m *MockChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *msg
	m.messages[msg.OrderID] = append(m.messages[msg.OrderID], &copy)
	return nil
}

func (m *MockChatRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.ChatMessage, 0, len(m.messages[orderID]))
	for _, msg := range m.messages[orderID] {
		copy := *msg
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockChatRepository) MarkRead(ctx context.Context, orderID, readerID string) error {
	atomic.AddInt32(&m.MarkReadCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[orderID] {
		if msg.SenderID != readerID {
			msg.Read = true
		}
	}
	return nil
}

// CountMessages returns the number of messages for an order.
func (m *MockChatRepository) CountMessages(orderID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[orderID])
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string][2]float64

	// Counters
	UpdateLocationCallCount int32
	RemoveLocationCallCount int32
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string][2]float64),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = [2]float64{lat, lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for id, pos := range m.locations {
		result = append(result, redis.DriverLocation{DriverID: id, Lat: pos[0], Lng: pos[1]})
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.RemoveLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK PRESENCE STORE
// ──────────────────────────────────────────────

// MockPresenceStore is a mock implementation of PresenceStoreInterface.
type MockPresenceStore struct {
	mu    sync.Mutex
	tiers map[domain.VehicleTier]map[string]struct{}
}

// NewMockPresenceStore creates a new mock presence store.
func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{
		tiers: make(map[domain.VehicleTier]map[string]struct{}),
	}
}

func (m *MockPresenceStore) SetOnline(ctx context.Context, driverID string, tier domain.VehicleTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiers[tier] == nil {
		m.tiers[tier] = make(map[string]struct{})
	}
	m.tiers[tier][driverID] = struct{}{}
	return nil
}

func (m *MockPresenceStore) SetOffline(ctx context.Context, driverID string, tier domain.VehicleTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tiers[tier], driverID)
	return nil
}

func (m *MockPresenceStore) OnlineCount(ctx context.Context, tier domain.VehicleTier) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tiers[tier])), nil
}

func (m *MockPresenceStore) OnlineDrivers(ctx context.Context, tier domain.VehicleTier) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, 0, len(m.tiers[tier]))
	for id := range m.tiers[tier] {
		result = append(result, id)
	}
	return result, nil
}

// IsOnline checks tier membership (for test assertions).
func (m *MockPresenceStore) IsOnline(driverID string, tier domain.VehicleTier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tiers[tier][driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:order:" + orderID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil // Lock still held.
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:order:"+orderID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER
// ──────────────────────────────────────────────

// BroadcastRecord is one captured fan-out call.
type BroadcastRecord struct {
	Room   string
	Event  hub.Event
	Except string
}

// MockBroadcaster captures hub fan-out calls for verification.
type MockBroadcaster struct {
	mu      sync.Mutex
	records []BroadcastRecord
}

// NewMockBroadcaster creates a new mock broadcaster.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Broadcast(room string, event hub.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, BroadcastRecord{Room: room, Event: event})
}

func (m *MockBroadcaster) BroadcastExcept(room string, event hub.Event, exceptSubject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, BroadcastRecord{Room: room, Event: event, Except: exceptSubject})
}

// Records returns all captured calls.
func (m *MockBroadcaster) Records() []BroadcastRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]BroadcastRecord, len(m.records))
	copy(result, m.records)
	return result
}

// EventsIn returns the event names broadcast to a room, in order.
func (m *MockBroadcaster) EventsIn(room string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, r := range m.records {
		if r.Room == room {
			names = append(names, r.Event.Name)
		}
	}
	return names
}
