package upsert_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
	"github.com/shopstr-eng/shopstr-cache/internal/upsert"
)

func testProduct(hash string) *domain.Product {
	return &domain.Product{
		EntityHeader: domain.EntityHeader{
			ID:          "30402:abc:widget",
			Time:        time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC),
			RecordID:    "rec",
			Author:      "abc",
			Kind:        domain.KindProduct,
			Payload:     []byte(`{"content":"","tags":[]}`),
			ContentHash: hash,
		},
		Price:    10,
		Currency: "USD",
	}
}

func TestEngine_Upsert(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")

	tests := []struct {
		name          string
		setup         func(s *mocks.MockStore, p *domain.Product)
		wantOutcome   domain.UpsertOutcome
		wantDivergent bool
		wantErr       bool
	}{
		{
			name: "new key is inserted",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(nil)
				s.EXPECT().InsertEntity(ctx, p).Return(domain.UpsertInserted, nil)
			},
			wantOutcome: domain.UpsertInserted,
		},
		{
			name: "existing key with same content",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(nil)
				s.EXPECT().InsertEntity(ctx, p).Return(domain.UpsertAlreadyPresent, nil)
				s.EXPECT().GetContentHash(ctx, domain.ClassProduct, p.ID, p.Time).Return("h1", nil)
			},
			wantOutcome: domain.UpsertAlreadyPresent,
		},
		{
			name: "existing key with different content is an anomaly",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(nil)
				s.EXPECT().InsertEntity(ctx, p).Return(domain.UpsertAlreadyPresent, nil)
				s.EXPECT().GetContentHash(ctx, domain.ClassProduct, p.ID, p.Time).Return("h0", nil)
			},
			wantOutcome:   domain.UpsertAlreadyPresent,
			wantDivergent: true,
		},
		{
			name: "hash lookup failure keeps the duplicate outcome",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(nil)
				s.EXPECT().InsertEntity(ctx, p).Return(domain.UpsertAlreadyPresent, nil)
				s.EXPECT().GetContentHash(ctx, domain.ClassProduct, p.ID, p.Time).Return("", storeErr)
			},
			wantOutcome: domain.UpsertAlreadyPresent,
		},
		{
			name: "partition failure",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(storeErr)
			},
			wantErr: true,
		},
		{
			name: "insert failure",
			setup: func(s *mocks.MockStore, p *domain.Product) {
				s.EXPECT().EnsurePartition(ctx, domain.ClassProduct, p.Time).Return(nil)
				s.EXPECT().InsertEntity(ctx, p).Return(domain.UpsertOutcome(""), storeErr)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			s := mocks.NewMockStore(ctrl)
			p := testProduct("h1")
			tt.setup(s, p)

			result, err := upsert.NewEngine(s).Upsert(ctx, p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrStore)
				assert.ErrorIs(t, err, storeErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.wantDivergent, result.Divergent)
		})
	}
}

func TestEngine_Upsert_NilEntity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := upsert.NewEngine(mocks.NewMockStore(ctrl)).Upsert(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrSchemaViolation)
}
