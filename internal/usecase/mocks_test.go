// internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"dukastore/internal/domain"
	"dukastore/internal/provider/mpesa"
)

// memLedger is an in-memory TransactionLedger whose TryTransition performs
// the same compare-and-set the SQL implementation does.
type memLedger struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{txs: make(map[string]*domain.Transaction)}
}

func (l *memLedger) Create(ctx context.Context, tx *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	cp := *tx
	l.txs[tx.CheckoutRef] = &cp
	return nil
}

func (l *memLedger) GetByCheckoutRef(ctx context.Context, checkoutRef string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[checkoutRef]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (l *memLedger) TryTransition(ctx context.Context, checkoutRef string, outcome domain.Outcome) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[checkoutRef]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if tx.Status != domain.TxStatusPending {
		return false, nil
	}

	now := time.Now()
	tx.Status = outcome.Status
	tx.ResultCode = &outcome.ResultCode
	tx.ResultDesc = &outcome.ResultDesc
	tx.ConfirmedAmount = outcome.ConfirmedAmount
	tx.ConfirmedPhone = outcome.ConfirmedPhone
	tx.ReceiptID = outcome.ReceiptID
	if outcome.Raw != nil {
		tx.CallbackData = outcome.Raw
	}
	tx.ResolvedAt = &now
	tx.UpdatedAt = now
	return true, nil
}

func (l *memLedger) CancelPendingForOrder(ctx context.Context, orderID, reason string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, tx := range l.txs {
		if tx.OrderID == orderID && tx.Status == domain.TxStatusPending {
			now := time.Now()
			tx.Status = domain.TxStatusCancelled
			tx.ResultDesc = &reason
			tx.ResolvedAt = &now
			count++
		}
	}
	return count, nil
}

// memOrders is an in-memory OrderStore that records status writes.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	writes []domain.OrderPaymentStatus
}

func newMemOrders(orders ...*domain.Order) *memOrders {
	m := &memOrders{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) SetPaymentStatus(ctx context.Context, orderID string, status domain.OrderPaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.PaymentStatus = status
	m.writes = append(m.writes, status)
	return nil
}

func (m *memOrders) paymentStatus(orderID string) domain.OrderPaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].PaymentStatus
}

// gatewayCall is one scripted answer from the fake gateway.
type gatewayCall struct {
	pushResp  *mpesa.STKPushResponse
	queryResp *mpesa.STKQueryResponse
	err       error
}

// fakeGateway answers scripted responses in order and counts calls.
type fakeGateway struct {
	mu          sync.Mutex
	pushScript  []gatewayCall
	queryScript []gatewayCall
	pushCalls   int
	queryCalls  int
}

func (g *fakeGateway) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int, accountRef, desc string) (*mpesa.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	call := g.pushScript[0]
	if len(g.pushScript) > 1 {
		g.pushScript = g.pushScript[1:]
	}
	g.pushCalls++
	return call.pushResp, call.err
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutRef string) (*mpesa.STKQueryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	call := g.queryScript[0]
	if len(g.queryScript) > 1 {
		g.queryScript = g.queryScript[1:]
	}
	g.queryCalls++
	return call.queryResp, call.err
}

func (g *fakeGateway) pushCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushCalls
}

func (g *fakeGateway) queryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryCalls
}

// fakeFulfillment signals each ProcessOrder call on a channel so tests can
// wait for the fire-and-forget goroutine.
type fakeFulfillment struct {
	calls chan string
}

func newFakeFulfillment() *fakeFulfillment {
	return &fakeFulfillment{calls: make(chan string, 8)}
}

func (f *fakeFulfillment) ProcessOrder(ctx context.Context, orderID string) error {
	f.calls <- orderID
	return nil
}

// waitForCall blocks until one call arrives or the timeout expires.
func (f *fakeFulfillment) waitForCall(timeout time.Duration) (string, bool) {
	select {
	case orderID := <-f.calls:
		return orderID, true
	case <-time.After(timeout):
		return "", false
	}
}

type fakeConfirmation struct {
	calls chan string
}

func newFakeConfirmation() *fakeConfirmation {
	return &fakeConfirmation{calls: make(chan string, 8)}
}

func (f *fakeConfirmation) SendConfirmation(ctx context.Context, order *domain.Order, tx *domain.Transaction) error {
	f.calls <- order.ID
	return nil
}

func (f *fakeConfirmation) waitForCall(timeout time.Duration) (string, bool) {
	select {
	case orderID := <-f.calls:
		return orderID, true
	case <-time.After(timeout):
		return "", false
	}
}

// recordedEvent is one Emit observed by the recording broadcaster.
type recordedEvent struct {
	room    string
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) Emit(ctx context.Context, room, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{room: room, event: event, payload: payload})
	return nil
}

func (b *recordingBroadcaster) recorded() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]recordedEvent, len(b.events))
	copy(out, b.events)
	return out
}
