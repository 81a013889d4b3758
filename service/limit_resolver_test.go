package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"guildbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func intPtr(v int) *int {
	return &v
}

func TestResolveLimit(t *testing.T) {
	tests := []struct {
		name         string
		personal     *int
		defaultValue string
		found        bool
		want         int
	}{
		{"personal wins over default", intPtr(5), "2", true, 5},
		{"no personal uses default", nil, "3", true, 3},
		{"zero personal inherits", intPtr(0), "3", true, 3},
		{"negative personal inherits", intPtr(-2), "4", true, 4},
		{"missing default falls back to one", nil, "", false, 1},
		{"garbage default falls back to one", nil, "lots", true, 1},
		{"zero default falls back to one", nil, "0", true, 1},
		{"padded default is trimmed", nil, " 7 ", true, 7},
		{"personal wins when default missing", intPtr(2), "", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLimit(tt.personal, tt.defaultValue, tt.found))
		})
	}
}

func TestResolveLimit_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		def := rapid.IntRange(-5, 50).Draw(t, "default")
		found := rapid.Bool().Draw(t, "found")
		var personal *int
		if rapid.Bool().Draw(t, "hasPersonal") {
			p := rapid.IntRange(-5, 50).Draw(t, "personal")
			personal = &p
		}

		got := ResolveLimit(personal, strconv.Itoa(def), found)

		if got < 1 {
			t.Fatalf("limit must be positive, got %d", got)
		}
		if personal != nil && *personal > 0 && got != *personal {
			t.Fatalf("positive personal limit %d must win, got %d", *personal, got)
		}
		if (personal == nil || *personal <= 0) && found && def > 0 && got != def {
			t.Fatalf("default %d must apply, got %d", def, got)
		}
	})
}

func TestLimitService_EffectiveLimit(t *testing.T) {
	ctx := context.Background()
	mockUoW := NewMockUnitOfWork()
	mockFactory := new(MockUnitOfWorkFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUoW.Members.On("GetByID", ctx, int64(7)).Return(&models.Member{ID: 7, PersonalLimit: intPtr(4)}, nil)
	mockUoW.Settings.On("Get", ctx, models.SettingDefaultLimit).Return("2", true, nil)

	limit, err := NewLimitService(mockFactory).EffectiveLimit(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, 4, limit)
	mockUoW.AssertAllExpectations(t)
}

func TestLimitService_SetGlobalLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive values before opening a transaction", func(t *testing.T) {
		mockFactory := new(MockUnitOfWorkFactory)

		err := NewLimitService(mockFactory).SetGlobalLimit(ctx, 1, 0)

		assert.ErrorIs(t, err, ErrValidation)
		mockFactory.AssertNotCalled(t, "Create")
	})

	t.Run("requires a guildmaster", func(t *testing.T) {
		mockUoW := NewMockUnitOfWork()
		mockFactory := new(MockUnitOfWorkFactory)
		mockFactory.On("Create").Return(mockUoW)
		mockUoW.On("Begin", ctx).Return(nil)
		mockUoW.On("Rollback").Return(nil)
		mockUoW.Members.On("GetByID", ctx, int64(2)).Return(&models.Member{ID: 2, Handle: "pleb"}, nil)

		err := NewLimitService(mockFactory).SetGlobalLimit(ctx, 2, 3)

		assert.ErrorIs(t, err, ErrForbidden)
		mockUoW.Settings.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stores the new default", func(t *testing.T) {
		mockUoW := NewMockUnitOfWork()
		mockFactory := new(MockUnitOfWorkFactory)
		mockFactory.On("Create").Return(mockUoW)
		mockUoW.On("Begin", ctx).Return(nil)
		mockUoW.On("Commit").Return(nil)
		mockUoW.On("Rollback").Return(nil)
		mockUoW.Members.On("GetByID", ctx, int64(1)).Return(&models.Member{ID: 1, IsGuildmaster: true}, nil)
		mockUoW.Settings.On("Set", ctx, models.SettingDefaultLimit, "3").Return(nil)

		err := NewLimitService(mockFactory).SetGlobalLimit(ctx, 1, 3)

		require.NoError(t, err)
		mockUoW.AssertAllExpectations(t)
	})
}

func TestLimitService_SetPersonalLimit(t *testing.T) {
	ctx := context.Background()
	gm := &models.Member{ID: 1, IsGuildmaster: true}
	target := &models.Member{ID: 5, Handle: "hero"}

	t.Run("negative is a validation error", func(t *testing.T) {
		err := NewLimitService(new(MockUnitOfWorkFactory)).SetPersonalLimit(ctx, 1, 5, -1)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("zero clears the override", func(t *testing.T) {
		mockUoW := NewMockUnitOfWork()
		mockFactory := new(MockUnitOfWorkFactory)
		mockFactory.On("Create").Return(mockUoW)
		mockUoW.On("Begin", ctx).Return(nil)
		mockUoW.On("Commit").Return(nil)
		mockUoW.On("Rollback").Return(nil)
		mockUoW.Members.On("GetByID", ctx, int64(1)).Return(gm, nil)
		mockUoW.Members.On("GetByID", ctx, int64(5)).Return(target, nil)
		mockUoW.Members.On("SetPersonalLimit", ctx, int64(5), (*int)(nil)).Return(nil)

		require.NoError(t, NewLimitService(mockFactory).SetPersonalLimit(ctx, 1, 5, 0))
		mockUoW.AssertAllExpectations(t)
	})

	t.Run("positive value is stored", func(t *testing.T) {
		mockUoW := NewMockUnitOfWork()
		mockFactory := new(MockUnitOfWorkFactory)
		mockFactory.On("Create").Return(mockUoW)
		mockUoW.On("Begin", ctx).Return(nil)
		mockUoW.On("Commit").Return(nil)
		mockUoW.On("Rollback").Return(nil)
		mockUoW.Members.On("GetByID", ctx, int64(1)).Return(gm, nil)
		mockUoW.Members.On("GetByID", ctx, int64(5)).Return(target, nil)
		mockUoW.Members.On("SetPersonalLimit", ctx, int64(5), mock.MatchedBy(func(limit *int) bool {
			return limit != nil && *limit == 3
		})).Return(nil)

		require.NoError(t, NewLimitService(mockFactory).SetPersonalLimit(ctx, 1, 5, 3))
		mockUoW.AssertAllExpectations(t)
	})

	t.Run("unknown member", func(t *testing.T) {
		mockUoW := NewMockUnitOfWork()
		mockFactory := new(MockUnitOfWorkFactory)
		mockFactory.On("Create").Return(mockUoW)
		mockUoW.On("Begin", ctx).Return(nil)
		mockUoW.On("Rollback").Return(nil)
		mockUoW.Members.On("GetByID", ctx, int64(1)).Return(gm, nil)
		mockUoW.Members.On("GetByID", ctx, int64(9)).Return(nil, nil)

		err := NewLimitService(mockFactory).SetPersonalLimit(ctx, 1, 9, 2)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
