package payments

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

	"github.com/storefrontlabs/storefront-backend/internal/orders"
	"github.com/storefrontlabs/storefront-backend/internal/stock"
	"github.com/storefrontlabs/storefront-backend/pkg/db"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.StockLedgerEntry{},
		&models.GatewayPayment{},
	))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	client := db.NewFromConn(conn)

	engine, err := stock.NewService(stock.NewRepository(conn), client, logg)
	require.NoError(t, err)

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orderRepo, engine, logg)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(conn), orderRepo, orderSvc, client, logg)
	require.NoError(t, err)
	return svc
}

// seedOrder creates an order totalling 50.00 with one line item of qty 2
// against a variant holding 10 units.
func seedOrder(t *testing.T, conn *gorm.DB, gatewayOrderRef string) (uuid.UUID, uuid.UUID) {
	t.Helper()

	product := models.Product{Title: "Test Product"}
	require.NoError(t, conn.Create(&product).Error)

	variant := models.ProductVariant{
		ProductID:     product.ID,
		SKU:           "SKU-" + uuid.NewString()[:8],
		Title:         "Variant",
		Price:         decimal.NewFromInt(25),
		StockQuantity: 10,
	}
	require.NoError(t, conn.Create(&variant).Error)

	order := models.Order{
		OrderNumber:     "ORD-" + uuid.NewString()[:8],
		Status:          enums.OrderStatusCreated,
		TotalAmount:     decimal.NewFromInt(50),
		GatewayOrderRef: &gatewayOrderRef,
	}
	require.NoError(t, conn.Create(&order).Error)

	lineItem := models.OrderLineItem{
		OrderID:   order.ID,
		VariantID: variant.ID,
		SKU:       variant.SKU,
		Title:     variant.Title,
		Quantity:  2,
		UnitPrice: variant.Price,
	}
	require.NoError(t, conn.Create(&lineItem).Error)

	return order.ID, variant.ID
}

func capturedInput(orderRef string) ReconcileInput {
	return ReconcileInput{
		GatewayPaymentRef: "pay_" + uuid.NewString()[:12],
		GatewayOrderRef:   orderRef,
		AmountMinor:       5000,
		CurrencyCode:      "INR",
		Status:            enums.GatewayPaymentStatusCaptured,
		EventSource:       "webhook",
	}
}

func TestReconcileCapturedPayment(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderRef := "order_" + uuid.NewString()[:12]
	orderID, variantID := seedOrder(t, conn, orderRef)

	result, err := svc.ReconcilePayment(ctx, capturedInput(orderRef))
	require.NoError(t, err)

	assert.Equal(t, orderID, result.OrderID)
	assert.Equal(t, enums.OrderStatusPaid, result.OrderStatus)
	assert.True(t, result.AmountValid)
	assert.False(t, result.AlreadyProcessed)
	require.NotNil(t, result.StockUpdate)
	assert.True(t, result.StockUpdate.Success)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.True(t, order.PaidAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, order.DueAmount.IsZero())

	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", variantID).Error)
	assert.Equal(t, 8, variant.StockQuantity)

	var payment models.GatewayPayment
	require.NoError(t, conn.First(&payment, "order_id = ?", orderID).Error)
	assert.True(t, payment.IsProcessed)
	assert.True(t, payment.IsAmountValid)
	require.NotNil(t, payment.ProcessedAt)
	require.NotNil(t, payment.CapturedAt)
}

func TestReconcileDuplicateDelivery(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderRef := "order_" + uuid.NewString()[:12]
	_, variantID := seedOrder(t, conn, orderRef)

	input := capturedInput(orderRef)
	first, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	second, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Nil(t, second.StockUpdate)

	// No duplicate stock reduction.
	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", variantID).Error)
	assert.Equal(t, 8, variant.StockQuantity)

	var count int64
	require.NoError(t, conn.Model(&models.StockLedgerEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcileDuplicateOfMismatchReportsInvalidAmount(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderRef := "order_" + uuid.NewString()[:12]
	seedOrder(t, conn, orderRef)

	input := capturedInput(orderRef)
	input.AmountMinor = 4200

	first, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	require.False(t, first.AmountValid)

	// The redelivery reports the stored verdict, not a blanket true.
	second, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.False(t, second.AmountValid)

	var payment models.GatewayPayment
	require.NoError(t, conn.First(&payment, "gateway_payment_ref = ?", input.GatewayPaymentRef).Error)
	assert.False(t, payment.IsAmountValid)
}

func TestReconcileAmountMismatchFlagsOrder(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderRef := "order_" + uuid.NewString()[:12]
	orderID, variantID := seedOrder(t, conn, orderRef)

	input := capturedInput(orderRef)
	input.AmountMinor = 4200

	result, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	assert.False(t, result.AmountValid)
	assert.Equal(t, enums.OrderStatusFlagged, result.OrderStatus)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, enums.OrderStatusFlagged, order.Status)

	// Flagged orders move no stock.
	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", variantID).Error)
	assert.Equal(t, 10, variant.StockQuantity)
}

func TestReconcileAuthorizedOnly(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderRef := "order_" + uuid.NewString()[:12]
	orderID, variantID := seedOrder(t, conn, orderRef)

	input := capturedInput(orderRef)
	input.Status = enums.GatewayPaymentStatusAuthorized

	result, err := svc.ReconcilePayment(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPending, result.OrderStatus)
	assert.Nil(t, result.StockUpdate)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, enums.OrderStatusPaymentPending, order.Status)

	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", variantID).Error)
	assert.Equal(t, 10, variant.StockQuantity)
}

func TestReconcileOrderNotFound(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.ReconcilePayment(context.Background(), capturedInput("order_missing"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
