package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"duka/internal/models"
	"duka/internal/repositories"
	"duka/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddToCart(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewCartService(mockRepo)
	ctx := context.Background()

	user := &models.User{ID: "u1", CartData: models.CartData{"p1": {"M": 1}}}
	mockRepo.On("GetByID", ctx, "u1").Return(user, nil).Once()
	mockRepo.On("UpdateCart", ctx, "u1", models.CartData{"p1": {"M": 2}}).Return(nil).Once()

	require.NoError(t, service.AddToCart(ctx, "u1", "p1", "M"))
	mockRepo.AssertExpectations(t)
}

func TestCartService_AddToCart_NewItem(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewCartService(mockRepo)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, "u1").Return(&models.User{ID: "u1"}, nil).Once()
	mockRepo.On("UpdateCart", ctx, "u1", models.CartData{"p2": {"L": 1}}).Return(nil).Once()

	require.NoError(t, service.AddToCart(ctx, "u1", "p2", "L"))
	mockRepo.AssertExpectations(t)
}

func TestCartService_UpdateCart(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewCartService(mockRepo)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, "u1").Return(&models.User{ID: "u1", CartData: models.CartData{"p1": {"M": 1, "L": 2}}}, nil).Twice()
	mockRepo.On("UpdateCart", ctx, "u1", models.CartData{"p1": {"M": 5, "L": 2}}).Return(nil).Once()
	mockRepo.On("UpdateCart", ctx, "u1", models.CartData{"p1": {"M": 1}}).Return(nil).Once()

	require.NoError(t, service.UpdateCart(ctx, "u1", "p1", "M", 5))
	require.NoError(t, service.UpdateCart(ctx, "u1", "p1", "L", 0))
	assert.True(t, errors.Is(service.UpdateCart(ctx, "u1", "p1", "L", -1), services.ErrValidation))
	mockRepo.AssertExpectations(t)
}

func TestCartService_ClearCart(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewCartService(mockRepo)
	ctx := context.Background()

	mockRepo.On("UpdateCart", ctx, "u1", models.CartData{}).Return(nil).Once()
	mockRepo.On("UpdateCart", ctx, "ghost", models.CartData{}).Return(fmt.Errorf("user with ID ghost: %w", repositories.ErrUserNotFound)).Once()

	assert.NoError(t, service.ClearCart(ctx, "u1"))
	assert.True(t, errors.Is(service.ClearCart(ctx, "ghost"), services.ErrNotFound))
}

func TestCartService_GetCart_UnknownUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewCartService(mockRepo)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, "ghost").Return(nil, fmt.Errorf("user ghost: %w", repositories.ErrUserNotFound)).Once()

	_, err := service.GetCart(ctx, "ghost")
	assert.True(t, errors.Is(err, services.ErrNotFound))

	_, err = service.GetCart(ctx, "")
	assert.True(t, errors.Is(err, services.ErrValidation))
	mockRepo.AssertNotCalled(t, "UpdateCart", mock.Anything, mock.Anything, mock.Anything)
}
