package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
)

// Repository manages persistence for gateway payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByGatewayPaymentRef(ctx context.Context, ref string) (*models.GatewayPayment, error)
	Create(ctx context.Context, payment *models.GatewayPayment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByGatewayPaymentRef(ctx context.Context, ref string) (*models.GatewayPayment, error) {
	var payment models.GatewayPayment
	if err := r.db.WithContext(ctx).
		First(&payment, "gateway_payment_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Create(ctx context.Context, payment *models.GatewayPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}
