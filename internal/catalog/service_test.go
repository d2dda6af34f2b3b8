package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	apperrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
	))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(NewRepository(conn), logg)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, title string, active bool, skus ...string) models.Product {
	t.Helper()
	product := models.Product{Title: title, IsActive: active}
	require.NoError(t, conn.Create(&product).Error)
	// gorm skips zero-value fields carrying a default tag on insert
	if !active {
		require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error)
	}
	for i, sku := range skus {
		variant := models.ProductVariant{
			ProductID:     product.ID,
			SKU:           sku,
			Title:         title + " " + sku,
			Price:         decimal.NewFromInt(int64(100 * (i + 1))),
			StockQuantity: 5 * i,
		}
		require.NoError(t, conn.Create(&variant).Error)
	}
	return product
}

func TestGetAvailability(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	seedProduct(t, conn, "Hoodie", true, "HOODIE-S", "HOODIE-M")

	availability, err := svc.GetAvailability(context.Background(), "HOODIE-M")
	require.NoError(t, err)
	assert.Equal(t, "HOODIE-M", availability.SKU)
	assert.Equal(t, 5, availability.StockQuantity)
	assert.True(t, availability.InStock)

	outOfStock, err := svc.GetAvailability(context.Background(), "HOODIE-S")
	require.NoError(t, err)
	assert.Equal(t, 0, outOfStock.StockQuantity)
	assert.False(t, outOfStock.InStock)
}

func TestGetAvailabilityOrderLimits(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	product := seedProduct(t, conn, "Poster", true)

	variant := models.ProductVariant{
		ProductID:        product.ID,
		SKU:              "POSTER-A2",
		Title:            "Poster A2",
		Price:            decimal.NewFromInt(300),
		StockQuantity:    50,
		MinOrderQuantity: 2,
		MaxOrderQuantity: 10,
	}
	require.NoError(t, conn.Create(&variant).Error)

	availability, err := svc.GetAvailability(context.Background(), "POSTER-A2")
	require.NoError(t, err)
	assert.Equal(t, 2, availability.MinOrderQuantity)
	assert.Equal(t, 10, availability.MaxOrderQuantity)
	assert.True(t, availability.IsActive)
	assert.True(t, availability.InStock)
}

func TestGetAvailabilityInactiveVariantNotInStock(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	product := seedProduct(t, conn, "Poster", true)

	variant := models.ProductVariant{
		ProductID:     product.ID,
		SKU:           "POSTER-OLD",
		Title:         "Poster Old",
		Price:         decimal.NewFromInt(300),
		StockQuantity: 50,
	}
	require.NoError(t, conn.Create(&variant).Error)
	// gorm skips zero-value fields carrying a default tag on insert
	require.NoError(t, conn.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("is_active", false).Error)

	availability, err := svc.GetAvailability(context.Background(), "POSTER-OLD")
	require.NoError(t, err)
	assert.Equal(t, 50, availability.StockQuantity)
	assert.False(t, availability.IsActive)
	assert.False(t, availability.InStock)
}

func TestGetAvailabilityUnknownSKU(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.GetAvailability(context.Background(), "NOPE")
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestGetAvailabilityBlankSKU(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.GetAvailability(context.Background(), "   ")
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())
}

func TestGetProduct(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	product := seedProduct(t, conn, "Tee", true, "TEE-S", "TEE-M", "TEE-L")

	dto, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, dto.ID)
	assert.Len(t, dto.Variants, 3)

	_, err = svc.GetProduct(context.Background(), uuid.New())
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestListProductsOnlyActive(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	seedProduct(t, conn, "Live", true, "LIVE-1")
	seedProduct(t, conn, "Retired", false, "RETIRED-1")

	products, err := svc.ListProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Live", products[0].Title)
}
