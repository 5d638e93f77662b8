package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"
)

var errRemoteDown = errors.New("commerce api unreachable")

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.CountEvent
}

func (p *recordingPublisher) Publish(ev notify.CountEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Last() (notify.CountEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return notify.CountEvent{}, false
	}
	return p.events[len(p.events)-1], true
}

// =====================
// リモートのカート（ユーザーごとに状態を持つ）
// =====================

type fakeCartServer struct {
	mu     sync.Mutex
	carts  map[string]*model.CartAggregate
	prices map[string]decimal.Decimal
	nextID int

	failGet    error
	failAdd    error
	failAddFor map[string]error
	failUpdate error
	failDelete error
	failClear  error

	// 次の UpdateLine を止める
	hold *serverHold
}

type serverHold struct {
	entered chan struct{}
	release chan struct{}
}

// holdNextUpdate は次の UpdateLine を release が閉じるまで止める。
func (s *fakeCartServer) holdNextUpdate() *serverHold {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = &serverHold{entered: make(chan struct{}), release: make(chan struct{})}
	return s.hold
}

func newFakeCartServer() *fakeCartServer {
	return &fakeCartServer{
		carts:      make(map[string]*model.CartAggregate),
		prices:     make(map[string]decimal.Decimal),
		failAddFor: make(map[string]error),
	}
}

func (s *fakeCartServer) cartOf(userID string) *model.CartAggregate {
	c, ok := s.carts[userID]
	if !ok {
		c = model.NewCartAggregate(model.CartModeAuthenticated)
		s.carts[userID] = c
	}
	return c
}

func (s *fakeCartServer) snapshot(userID string) model.CartAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cartOf(userID).Clone()
}

func (s *fakeCartServer) GetCart(ctx context.Context, who model.Identity) (model.CartAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return model.CartAggregate{}, s.failGet
	}
	return *s.cartOf(who.UserID).Clone(), nil
}

func (s *fakeCartServer) AddLine(ctx context.Context, who model.Identity, productID string, qty int, size string) (model.CartAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd != nil {
		return model.CartAggregate{}, s.failAdd
	}
	if err := s.failAddFor[productID]; err != nil {
		return model.CartAggregate{}, err
	}
	s.nextID++
	summary := model.ProductSummary{ProductID: productID, Name: "product " + productID, Price: s.prices[productID]}
	c := s.cartOf(who.UserID)
	c.AddLine(fmt.Sprintf("srv-%d", s.nextID), productID, qty, size, summary)
	return *c.Clone(), nil
}

func (s *fakeCartServer) UpdateLine(ctx context.Context, who model.Identity, lineID string, patch repo.LinePatch) (model.CartAggregate, error) {
	s.mu.Lock()
	h := s.hold
	s.hold = nil
	s.mu.Unlock()
	if h != nil {
		close(h.entered)
		<-h.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return model.CartAggregate{}, s.failUpdate
	}
	c := s.cartOf(who.UserID)
	if !c.HasLine(lineID) {
		return model.CartAggregate{}, repo.ErrNotFound
	}
	if patch.Quantity != nil {
		c.UpdateQuantity(lineID, *patch.Quantity)
	}
	if patch.Size != nil {
		c.UpdateSize(lineID, *patch.Size)
	}
	return *c.Clone(), nil
}

func (s *fakeCartServer) DeleteLine(ctx context.Context, who model.Identity, lineID string) (model.CartAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return model.CartAggregate{}, s.failDelete
	}
	c := s.cartOf(who.UserID)
	if !c.RemoveLine(lineID) {
		return model.CartAggregate{}, repo.ErrNotFound
	}
	return *c.Clone(), nil
}

func (s *fakeCartServer) Clear(ctx context.Context, who model.Identity) (model.CartAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failClear != nil {
		return model.CartAggregate{}, s.failClear
	}
	c := s.cartOf(who.UserID)
	c.Clear()
	return *c.Clone(), nil
}

var _ repo.CartRepository = (*fakeCartServer)(nil)

// =====================
// ProductRepository / OrderRepository モック
// =====================

type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) FindByID(ctx context.Context, productID string) (model.ProductSummary, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.ProductSummary)
	return p, args.Error(1)
}

var _ repo.ProductRepository = (*MockProductRepo)(nil)

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, who model.Identity, req model.OrderRequest) (model.OrderDescriptor, error) {
	args := m.Called(ctx, who, req)
	o, _ := args.Get(0).(model.OrderDescriptor)
	return o, args.Error(1)
}

func (m *MockOrderRepo) FindByID(ctx context.Context, who model.Identity, orderID string) (model.OrderDescriptor, error) {
	args := m.Called(ctx, who, orderID)
	o, _ := args.Get(0).(model.OrderDescriptor)
	return o, args.Error(1)
}

func (m *MockOrderRepo) Pay(ctx context.Context, who model.Identity, orderID string) (string, error) {
	args := m.Called(ctx, who, orderID)
	return args.String(0), args.Error(1)
}

var _ repo.OrderRepository = (*MockOrderRepo)(nil)

// =====================
// 組み立て
// =====================

type fixture struct {
	t        *testing.T
	kv       *infraRepo.KVMemoryRepository
	clock    *fixedClock
	ids      *seqIDs
	pub      *recordingPublisher
	server   *fakeCartServer
	products *MockProductRepo
	orders   *MockOrderRepo

	storage    *usecase.CartStorage
	sessions   *usecase.SessionRegistry
	lookup     *usecase.ProductLookup
	gateway    *usecase.MutationGateway
	selections *usecase.SelectionTracker
	reconciler *usecase.ReconciliationEngine
	carts      *usecase.CartUsecase
	orderUC    *usecase.OrderUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		kv:       infraRepo.NewKVMemoryRepository(),
		clock:    &fixedClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
		ids:      &seqIDs{},
		pub:      &recordingPublisher{},
		server:   newFakeCartServer(),
		products: &MockProductRepo{},
		orders:   &MockOrderRepo{},
	}
	f.build(f.kv)
	return f
}

// build は同じKVの上に部品を作り直す（プロセス再起動の再現にも使う）。
func (f *fixture) build(kv repo.KeyValueStore) {
	logger := zaptest.NewLogger(f.t)
	f.storage = usecase.NewCartStorage(kv, f.clock)
	f.sessions = usecase.NewSessionRegistry(f.storage, f.clock, 30*time.Minute, logger)
	f.lookup = usecase.NewProductLookup(f.products, logger)
	f.gateway = usecase.NewMutationGateway(f.server, f.lookup, f.storage, f.pub, f.ids, logger)
	f.selections = usecase.NewSelectionTracker(f.storage, f.gateway, logger)
	f.reconciler = usecase.NewReconciliationEngine(f.server, f.storage, f.pub, logger)
	f.carts = usecase.NewCartUsecase(f.sessions, f.gateway, f.selections, f.reconciler, f.server, f.storage, logger)
	f.orderUC = usecase.NewOrderUsecase(f.sessions, f.selections, f.orders, f.ids, logger)
}

// restart はメモリ上の状態を捨てて作り直す。
func (f *fixture) restart() {
	f.build(f.kv)
}

func (f *fixture) product(id string, price int64, sizes ...string) model.ProductSummary {
	p := model.ProductSummary{ProductID: id, Name: "product " + id, Price: decimal.NewFromInt(price), Sizes: sizes}
	f.products.On("FindByID", mock.Anything, id).Return(p, nil).Maybe()
	f.server.prices[id] = p.Price
	return p
}

func (f *fixture) session(clientID string) *usecase.CartSession {
	return f.sessions.Open(context.Background(), clientID)
}

func (f *fixture) signIn(clientID string, userID string) usecase.ReconcileReport {
	f.t.Helper()
	rep, err := f.carts.SignIn(context.Background(), clientID, model.Identity{
		UserID:           userID,
		AccessToken:      "token-" + userID,
		CorrelationToken: "corr-" + userID,
	})
	require.NoError(f.t, err)
	return rep
}

func (f *fixture) hasKey(key string) bool {
	_, ok, err := f.kv.Get(context.Background(), key)
	require.NoError(f.t, err)
	return ok
}

func lineIDs(c *model.CartAggregate) []string {
	return c.LineIDs()
}
