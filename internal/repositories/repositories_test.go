package repositories_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"duka/internal/models"
	"duka/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.PaymentAttempt{}, &models.Product{}, &models.User{}))
	return db
}

// orderRepos returns every OrderRepository implementation, each on fresh storage.
func orderRepos(t *testing.T) map[string]repositories.OrderRepository {
	return map[string]repositories.OrderRepository{
		"memory": repositories.NewMemoryOrderRepository(),
		"gorm":   repositories.NewGORMOrderRepository(openDB(t)),
	}
}

func attemptRepos(t *testing.T) map[string]repositories.PaymentAttemptRepository {
	return map[string]repositories.PaymentAttemptRepository{
		"memory": repositories.NewMemoryPaymentAttemptRepository(),
		"gorm":   repositories.NewGORMPaymentAttemptRepository(openDB(t)),
	}
}

func pendingOrder(id, userID string) *models.Order {
	return &models.Order{
		ID:                id,
		UserID:            userID,
		Items:             []models.OrderItem{{ProductID: "p1", Quantity: 2, Size: "M"}},
		Amount:            100,
		Address:           models.Address{FirstName: "Amina", LastName: "Otieno", Phone: "254712345678"},
		PaymentMethod:     models.PaymentMethodMpesa,
		Status:            models.StatusPending,
		MerchantRequestID: "mr-" + id,
		CheckoutRequestID: "ws_CO_" + id,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))

			got, err := repo.GetByID(ctx, "o1")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, "p1", got.Items[0].ProductID)
			assert.Equal(t, "254712345678", got.Address.Phone)
			assert.False(t, got.Date.IsZero())

			_, err = repo.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
		})
	}
}

func TestOrderRepository_Find(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := pendingOrder("o1", "u1")
			older.Date = time.Now().Add(-time.Hour)
			require.NoError(t, repo.Create(ctx, older))
			require.NoError(t, repo.Create(ctx, pendingOrder("o2", "u1")))
			require.NoError(t, repo.Create(ctx, pendingOrder("o3", "u2")))

			mine, err := repo.Find(ctx, repositories.OrderFilter{UserID: "u1"})
			require.NoError(t, err)
			require.Len(t, mine, 2)
			assert.Equal(t, "o2", mine[0].ID)

			all, err := repo.Find(ctx, repositories.OrderFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 3)

			one, err := repo.FindOne(ctx, repositories.OrderFilter{MerchantRequestID: "mr-o3"})
			require.NoError(t, err)
			assert.Equal(t, "o3", one.ID)

			one, err = repo.FindOne(ctx, repositories.OrderFilter{CheckoutRequestID: "ws_CO_o1"})
			require.NoError(t, err)
			assert.Equal(t, "o1", one.ID)

			_, err = repo.FindOne(ctx, repositories.OrderFilter{MerchantRequestID: "nope"})
			assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
		})
	}
}

func TestOrderRepository_ConfirmPayment(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))

			outcome, err := repo.ConfirmPayment(ctx, "o1", "ws_CO_stale")
			require.NoError(t, err)
			assert.Equal(t, repositories.ConfirmStaleToken, outcome)

			outcome, err = repo.ConfirmPayment(ctx, "o1", "ws_CO_o1")
			require.NoError(t, err)
			assert.Equal(t, repositories.ConfirmApplied, outcome)

			outcome, err = repo.ConfirmPayment(ctx, "o1", "ws_CO_o1")
			require.NoError(t, err)
			assert.Equal(t, repositories.ConfirmAlreadyPaid, outcome)

			got, err := repo.GetByID(ctx, "o1")
			require.NoError(t, err)
			assert.True(t, got.Payment)
			assert.Equal(t, models.StatusConfirmed, got.Status)

			_, err = repo.ConfirmPayment(ctx, "missing", "ws_CO_o1")
			assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
		})
	}
}

func TestOrderRepository_ConfirmPayment_Concurrent(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))

			const workers = 20
			var wg sync.WaitGroup
			outcomes := make(chan repositories.ConfirmOutcome, workers)
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					outcome, err := repo.ConfirmPayment(ctx, "o1", "ws_CO_o1")
					if err != nil {
						errs <- err
						return
					}
					outcomes <- outcome
				}()
			}
			wg.Wait()
			close(outcomes)
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}
			applied := 0
			for outcome := range outcomes {
				if outcome == repositories.ConfirmApplied {
					applied++
				} else {
					assert.Equal(t, repositories.ConfirmAlreadyPaid, outcome)
				}
			}
			assert.Equal(t, 1, applied)
		})
	}
}

func TestOrderRepository_SetCheckout(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))

			require.NoError(t, repo.SetCheckout(ctx, "o1", "mr-2", "ws_CO_2"))
			got, err := repo.GetByID(ctx, "o1")
			require.NoError(t, err)
			assert.Equal(t, "ws_CO_2", got.CheckoutRequestID)
			assert.Equal(t, "mr-2", got.MerchantRequestID)

			// The superseded token can no longer confirm.
			outcome, err := repo.ConfirmPayment(ctx, "o1", "ws_CO_o1")
			require.NoError(t, err)
			assert.Equal(t, repositories.ConfirmStaleToken, outcome)

			_, err = repo.ConfirmPayment(ctx, "o1", "ws_CO_2")
			require.NoError(t, err)
			assert.ErrorIs(t, repo.SetCheckout(ctx, "o1", "mr-3", "ws_CO_3"), repositories.ErrOrderAlreadyPaid)
			assert.ErrorIs(t, repo.SetCheckout(ctx, "missing", "mr-3", "ws_CO_3"), repositories.ErrOrderNotFound)
		})
	}
}

func TestOrderRepository_DeleteUnpaid(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))
			require.NoError(t, repo.Create(ctx, pendingOrder("o2", "u1")))
			require.NoError(t, repo.Create(ctx, pendingOrder("o3", "u1")))

			_, err := repo.ConfirmPayment(ctx, "o2", "ws_CO_o2")
			require.NoError(t, err)
			require.NoError(t, repo.UpdateStatus(ctx, "o3", models.StatusShipped))

			deleted, err := repo.DeleteUnpaid(ctx, "o2", models.CancellableStatuses)
			require.NoError(t, err)
			assert.False(t, deleted)

			deleted, err = repo.DeleteUnpaid(ctx, "o3", models.CancellableStatuses)
			require.NoError(t, err)
			assert.False(t, deleted)

			deleted, err = repo.DeleteUnpaid(ctx, "o1", models.CancellableStatuses)
			require.NoError(t, err)
			assert.True(t, deleted)

			_, err = repo.GetByID(ctx, "o1")
			assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
			_, err = repo.DeleteUnpaid(ctx, "o1", models.CancellableStatuses)
			assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
		})
	}
}

func TestOrderRepository_UpdateStatusAndDelete(t *testing.T) {
	for name, repo := range orderRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("o1", "u1")))

			require.NoError(t, repo.UpdateStatus(ctx, "o1", models.StatusPacking))
			got, err := repo.GetByID(ctx, "o1")
			require.NoError(t, err)
			assert.Equal(t, models.StatusPacking, got.Status)
			assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", models.StatusPacking), repositories.ErrOrderNotFound)

			require.NoError(t, repo.Delete(ctx, "o1"))
			assert.ErrorIs(t, repo.Delete(ctx, "o1"), repositories.ErrOrderNotFound)
		})
	}
}

func TestPaymentAttemptRepository(t *testing.T) {
	for name, repo := range attemptRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &models.PaymentAttempt{OrderID: "o1", MerchantRequestID: "mr-1", CheckoutRequestID: "ws_CO_1", Amount: 100, Status: models.AttemptPending}
			require.NoError(t, repo.Create(ctx, first))
			assert.NotEmpty(t, first.ID)
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, repo.Create(ctx, &models.PaymentAttempt{OrderID: "o1", MerchantRequestID: "mr-2", CheckoutRequestID: "ws_CO_2", Amount: 100, Status: models.AttemptPending}))

			byMerchant, err := repo.GetByMerchantRequestID(ctx, "mr-1")
			require.NoError(t, err)
			assert.Equal(t, first.ID, byMerchant.ID)

			byCheckout, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_2")
			require.NoError(t, err)
			assert.Equal(t, "mr-2", byCheckout.MerchantRequestID)

			_, err = repo.GetByMerchantRequestID(ctx, "nope")
			assert.ErrorIs(t, err, repositories.ErrAttemptNotFound)

			for i := 0; i < 2; i++ {
				require.NoError(t, repo.UpdateResult(ctx, first.ID, models.AttemptSuccess, "processed"))
			}
			updated, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_1")
			require.NoError(t, err)
			assert.Equal(t, models.AttemptSuccess, updated.Status)
			assert.Equal(t, "processed", updated.ResultDescription)
			assert.ErrorIs(t, repo.UpdateResult(ctx, "missing", models.AttemptFailed, ""), repositories.ErrAttemptNotFound)

			list, err := repo.ListByOrder(ctx, "o1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ws_CO_1", list[0].CheckoutRequestID)
		})
	}
}

func TestGORMUserRepository(t *testing.T) {
	repo := repositories.NewGORMUserRepository(openDB(t))
	ctx := context.Background()

	user := &models.User{Name: "Amina", Email: "amina@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	got, err := repo.GetByEmail(ctx, "amina@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.CartData)

	require.NoError(t, repo.UpdateCart(ctx, user.ID, models.CartData{"p1": {"M": 2}}))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CartData["p1"]["M"])

	require.NoError(t, repo.UpdateCart(ctx, user.ID, models.CartData{}))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CartData)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdateCart(ctx, "missing", models.CartData{}), repositories.ErrUserNotFound)
}

func TestGORMProductRepository(t *testing.T) {
	repo := repositories.NewGORMProductRepository(openDB(t))
	ctx := context.Background()

	product := &models.Product{Name: "Linen Shirt", Price: 1500, Category: "Men", SubCategory: "Topwear", Sizes: []string{"M"}}
	require.NoError(t, repo.Create(ctx, product))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"M"}, all[0].Sizes)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", got.Name)

	require.NoError(t, repo.Delete(ctx, product.ID))
	_, err = repo.GetByID(ctx, product.ID)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, product.ID), repositories.ErrProductNotFound)
}
