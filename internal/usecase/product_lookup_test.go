package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
)

func TestProductLookup_MemoizesWithinRequest(t *testing.T) {
	products := &MockProductRepo{}
	want := model.ProductSummary{ProductID: "P1", Name: "Tee", Price: decimal.NewFromInt(2500)}
	products.On("FindByID", mock.Anything, "P1").Return(want, nil).Once()
	lookup := usecase.NewProductLookup(products, zaptest.NewLogger(t))

	ctx := usecase.WithRequestMemo(context.Background())
	first, err := lookup.Find(ctx, "P1")
	require.NoError(t, err)
	second, err := lookup.Find(ctx, "P1")
	require.NoError(t, err)

	assert.Equal(t, want.Name, first.Name)
	assert.Equal(t, first.Name, second.Name)
	products.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestProductLookup_NoMemoAcrossRequests(t *testing.T) {
	products := &MockProductRepo{}
	products.On("FindByID", mock.Anything, "P1").Return(model.ProductSummary{ProductID: "P1"}, nil)
	lookup := usecase.NewProductLookup(products, zaptest.NewLogger(t))

	_, _ = lookup.Find(usecase.WithRequestMemo(context.Background()), "P1")
	_, _ = lookup.Find(usecase.WithRequestMemo(context.Background()), "P1")

	products.AssertNumberOfCalls(t, "FindByID", 2)
}

func TestProductLookup_ResolveFallsBackToPlaceholder(t *testing.T) {
	products := &MockProductRepo{}
	products.On("FindByID", mock.Anything, "P404").Return(model.ProductSummary{}, errRemoteDown)
	lookup := usecase.NewProductLookup(products, zaptest.NewLogger(t))

	got := lookup.Resolve(context.Background(), "P404")

	assert.Equal(t, model.PlaceholderProduct("P404"), got)
}
