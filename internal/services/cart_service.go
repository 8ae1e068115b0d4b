package services

import (
	"context"
	"errors"
	"fmt"

	"duka/internal/models"
	"duka/internal/repositories"
)

// CartService manages the per-user cart stored on the user record.
type CartService struct {
	users repositories.UserRepository
}

// NewCartService creates a new CartService.
func NewCartService(users repositories.UserRepository) *CartService {
	return &CartService{users: users}
}

// GetCart returns a copy of the user's cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (models.CartData, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart := make(models.CartData, len(user.CartData))
	for itemID, sizes := range user.CartData {
		cart[itemID] = make(map[string]int, len(sizes))
		for size, qty := range sizes {
			cart[itemID][size] = qty
		}
	}
	return cart, nil
}

// AddToCart adds one unit of itemID in the given size.
func (s *CartService) AddToCart(ctx context.Context, userID, itemID, size string) error {
	if itemID == "" || size == "" {
		return validationError("itemId and size are required")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	if cart[itemID] == nil {
		cart[itemID] = map[string]int{}
	}
	cart[itemID][size]++
	return s.save(ctx, userID, cart)
}

// UpdateCart sets the quantity of itemID in the given size. Zero removes it.
func (s *CartService) UpdateCart(ctx context.Context, userID, itemID, size string, quantity int) error {
	if itemID == "" || size == "" {
		return validationError("itemId and size are required")
	}
	if quantity < 0 {
		return validationError("quantity must not be negative")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	if quantity == 0 {
		delete(cart[itemID], size)
		if len(cart[itemID]) == 0 {
			delete(cart, itemID)
		}
	} else {
		if cart[itemID] == nil {
			cart[itemID] = map[string]int{}
		}
		cart[itemID][size] = quantity
	}
	return s.save(ctx, userID, cart)
}

// ClearCart empties the user's cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	return s.save(ctx, userID, models.CartData{})
}

func (s *CartService) user(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, validationError("userId is required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, notFoundError("user %s not found", userID)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return user, nil
}

func (s *CartService) save(ctx context.Context, userID string, cart models.CartData) error {
	if err := s.users.UpdateCart(ctx, userID, cart); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return notFoundError("user %s not found", userID)
		}
		return fmt.Errorf("failed to save cart for user %s: %w", userID, err)
	}
	return nil
}
