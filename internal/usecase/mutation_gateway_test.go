package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
)

func TestMutationGateway_GuestAddMergesSameProductAndSize(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 1500, "S", "M")
	ctx := context.Background()
	s := f.session("c1")

	first := f.gateway.Add(ctx, s, "P1", 2, "M")
	second := f.gateway.Add(ctx, s, "P1", 1, "M")

	assert.Equal(t, usecase.PathLocal, first.Path)
	assert.Equal(t, usecase.PathLocal, second.Path)
	require.Len(t, second.Cart.Lines, 1)
	assert.Equal(t, 3, second.Cart.Lines[0].Quantity)
	assert.Equal(t, first.LineID, second.LineID)
	assert.True(t, strings.HasPrefix(second.LineID, model.LocalLineIDPrefix))
	assert.True(t, second.Cart.Total.Equal(decimal.NewFromInt(4500)))

	// ゲストのスナップショットが保存され、件数が通知される
	assert.True(t, f.hasKey("c1:"+usecase.KeyGuestCart))
	ev, ok := f.pub.Last()
	require.True(t, ok)
	assert.Equal(t, "c1", ev.ClientID)
	assert.Equal(t, 3, ev.Count)
}

func TestMutationGateway_QuantityIsClamped(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	ctx := context.Background()
	s := f.session("c1")

	res := f.gateway.Add(ctx, s, "P1", 25, "")
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, model.MaxQuantity, res.Cart.Lines[0].Quantity)

	res = f.gateway.UpdateQuantity(ctx, s, res.LineID, 0)
	assert.Equal(t, model.MinQuantity, res.Cart.Lines[0].Quantity)
}

func TestMutationGateway_RemoteSuccessReplacesAggregate(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 1000)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")

	res := f.gateway.Add(ctx, s, "P1", 2, "L")

	assert.Equal(t, usecase.PathRemote, res.Path)
	assert.NoError(t, res.Cause)
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, "srv-1", res.Cart.Lines[0].ID)
	assert.Equal(t, model.CartModeAuthenticated, res.Cart.Mode)
	assert.True(t, f.hasKey("c1:"+usecase.KeyAuthCache))
	assert.Equal(t, 2, f.server.snapshot("u1").LineCount)
}

func TestMutationGateway_RemoteAddFailureDegradesToLocal(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100000)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")
	f.server.failAdd = errRemoteDown

	var res usecase.MutationResult
	require.NotPanics(t, func() {
		res = f.gateway.Add(ctx, s, "P1", 2, "M")
	})

	assert.Equal(t, usecase.PathDegradedLocal, res.Path)
	assert.True(t, res.Degraded())
	assert.ErrorIs(t, res.Cause, errRemoteDown)
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, 2, res.Cart.Lines[0].Quantity)
	assert.True(t, res.Cart.Lines[0].IsLocal())
	assert.True(t, res.Cart.Total.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 2, s.Count())
}

func TestMutationGateway_DegradedAddUsesPlaceholderWhenLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")
	f.server.failAdd = errRemoteDown
	f.products.On("FindByID", mock.Anything, "P9").Return(model.ProductSummary{}, errRemoteDown)

	res := f.gateway.Add(ctx, s, "P9", 1, "")

	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, "P9", res.Cart.Lines[0].Product.Name)
	assert.True(t, res.Cart.Total.IsZero())
}

func TestMutationGateway_RemovalPrunesSelection(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	f.product("P2", 200)
	ctx := context.Background()
	s := f.session("c1")

	l1 := f.gateway.Add(ctx, s, "P1", 1, "").LineID
	l2 := f.gateway.Add(ctx, s, "P2", 1, "").LineID
	f.selections.InitializeSelection(s)
	require.ElementsMatch(t, []string{l1, l2}, s.Selected())

	f.gateway.Remove(ctx, s, l2)

	assert.Equal(t, []string{l1}, s.Selected())
}

func TestMutationGateway_AbsentLineIsNoop(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	ctx := context.Background()
	s := f.session("c1")
	f.gateway.Add(ctx, s, "P1", 1, "")

	assert.Equal(t, usecase.PathNoop, f.gateway.UpdateQuantity(ctx, s, "missing", 3).Path)
	assert.Equal(t, usecase.PathNoop, f.gateway.UpdateSize(ctx, s, "missing", "L").Path)
	assert.Equal(t, usecase.PathNoop, f.gateway.Remove(ctx, s, "missing").Path)
	assert.Equal(t, 1, s.Count())
}

func TestMutationGateway_UpdateSizeMergesIntoExistingLine(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100, "M", "L")
	ctx := context.Background()
	s := f.session("c1")

	m := f.gateway.Add(ctx, s, "P1", 4, "M").LineID
	l := f.gateway.Add(ctx, s, "P1", 8, "L").LineID

	res := f.gateway.UpdateSize(ctx, s, m, "L")

	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, l, res.LineID)
	assert.Equal(t, "L", res.Cart.Lines[0].Size)
	assert.Equal(t, model.MaxQuantity, res.Cart.Lines[0].Quantity)
}

func TestMutationGateway_RemoteUpdateFailureAppliesLocally(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")
	id := f.gateway.Add(ctx, s, "P1", 1, "").LineID

	f.server.failUpdate = errRemoteDown
	res := f.gateway.UpdateQuantity(ctx, s, id, 5)

	assert.Equal(t, usecase.PathDegradedLocal, res.Path)
	assert.Equal(t, 5, res.Cart.Lines[0].Quantity)
	// サーバー側は変わっていない
	assert.Equal(t, 1, f.server.snapshot("u1").LineCount)
}

func TestMutationGateway_RemoveLinesPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	f.product("P2", 100)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")
	l1 := f.gateway.Add(ctx, s, "P1", 1, "").LineID
	l2 := f.gateway.Add(ctx, s, "P2", 1, "").LineID

	f.server.failDelete = errRemoteDown
	res := f.gateway.RemoveLines(ctx, s, []string{l1, l2})

	assert.Equal(t, usecase.PathDegradedLocal, res.Path)
	assert.Empty(t, res.Cart.Lines)
}

func TestMutationGateway_ClearEmptiesCartAndSelection(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	ctx := context.Background()
	s := f.session("c1")
	f.gateway.Add(ctx, s, "P1", 3, "")
	f.selections.InitializeSelection(s)

	res := f.gateway.Clear(ctx, s)

	assert.Empty(t, res.Cart.Lines)
	assert.Equal(t, 0, res.Cart.LineCount)
	assert.Empty(t, s.Selected())
	ev, _ := f.pub.Last()
	assert.Equal(t, 0, ev.Count)
}

func TestMutationGateway_ConcurrentAddsStayValid(t *testing.T) {
	for _, serialize := range []bool{false, true} {
		f := newFixture(t)
		f.product("P1", 100)
		f.gateway.SerializeLineMutations(serialize)
		ctx := context.Background()
		s := f.session("c1")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.gateway.Add(ctx, s, "P1", 1, "M")
			}()
		}
		wg.Wait()

		cart := s.Cart()
		require.NoError(t, cart.Validate())
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, model.MaxQuantity, cart.Lines[0].Quantity)
	}
}

// 直列化ありなら、既存行への加算はその明細の更新が終わるまで待つ
func TestMutationGateway_SerializedAddWaitsForSameLineUpdate(t *testing.T) {
	f := newFixture(t)
	f.product("P1", 100)
	ctx := context.Background()
	f.signIn("c1", "u1")
	s := f.session("c1")
	lineID := f.gateway.Add(ctx, s, "P1", 1, "M").LineID
	require.NotEmpty(t, lineID)
	f.gateway.SerializeLineMutations(true)

	hold := f.server.holdNextUpdate()
	updated := make(chan usecase.MutationResult, 1)
	go func() { updated <- f.gateway.UpdateQuantity(ctx, s, lineID, 5) }()
	<-hold.entered

	added := make(chan usecase.MutationResult, 1)
	go func() { added <- f.gateway.Add(ctx, s, "P1", 1, "M") }()

	select {
	case <-added:
		t.Fatal("add finished while the update of the same line was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(hold.release)

	assert.Equal(t, usecase.PathRemote, (<-updated).Path)
	res := <-added
	assert.Equal(t, usecase.PathRemote, res.Path)
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, 6, res.Cart.Lines[0].Quantity)
	assert.Equal(t, lineID, res.LineID)
	assert.Equal(t, 6, f.server.snapshot("u1").LineCount)
}

// 商品取得中にサインインが終わると、ゲストの追加は捨てられて警告が残る
func TestMutationGateway_GuestAddOvertakenBySignInIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	gateway := usecase.NewMutationGateway(f.server, f.lookup, f.storage, f.pub, f.ids, zap.New(core))
	s := f.session("c1")

	f.products.On("FindByID", mock.Anything, "P9").
		Run(func(mock.Arguments) { f.signIn("c1", "u1") }).
		Return(model.ProductSummary{ProductID: "P9", Name: "late", Price: decimal.NewFromInt(100)}, nil).
		Once()

	res := gateway.Add(ctx, s, "P9", 1, "")

	assert.Equal(t, usecase.PathNoop, res.Path)
	assert.Empty(t, res.Cart.Lines)
	assert.Equal(t, model.CartModeAuthenticated, s.Mode())

	entries := logs.FilterMessage("cart mutation discarded after identity change").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "add", fields["op"])
	assert.Equal(t, "", fields["from_user_id"])
	assert.Equal(t, "u1", fields["to_user_id"])
}
