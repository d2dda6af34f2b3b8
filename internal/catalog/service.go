package catalog

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

// Service answers storefront catalog reads.
type Service interface {
	GetAvailability(ctx context.Context, sku string) (*VariantAvailability, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, limit int) ([]ProductDTO, error)
}

// VariantAvailability is the storefront view of one variant's stock and
// order limits. MaxOrderQuantity of zero means no cap.
type VariantAvailability struct {
	VariantID        uuid.UUID       `json:"variant_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	SKU              string          `json:"sku"`
	Title            string          `json:"title"`
	Price            decimal.Decimal `json:"price"`
	StockQuantity    int             `json:"stock_quantity"`
	MinOrderQuantity int             `json:"min_order_quantity"`
	MaxOrderQuantity int             `json:"max_order_quantity"`
	IsActive         bool            `json:"is_active"`
	InStock          bool            `json:"in_stock"`
}

// ProductDTO is a product with its variants, shaped for API responses.
type ProductDTO struct {
	ID          uuid.UUID             `json:"id"`
	Title       string                `json:"title"`
	Description *string               `json:"description,omitempty"`
	IsActive    bool                  `json:"is_active"`
	Variants    []VariantAvailability `json:"variants"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetAvailability(ctx context.Context, sku string) (*VariantAvailability, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}

	variant, err := s.repo.FindVariantBySKU(ctx, sku)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading variant")
	}

	availability := toAvailability(*variant)
	return &availability, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.repo.FindProductWithVariants(ctx, productID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}

	dto := toProductDTO(*product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, limit int) ([]ProductDTO, error) {
	products, err := s.repo.ListActiveProducts(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, product := range products {
		dtos = append(dtos, toProductDTO(product))
	}
	return dtos, nil
}

func toAvailability(variant models.ProductVariant) VariantAvailability {
	return VariantAvailability{
		VariantID:        variant.ID,
		ProductID:        variant.ProductID,
		SKU:              variant.SKU,
		Title:            variant.Title,
		Price:            variant.Price,
		StockQuantity:    variant.StockQuantity,
		MinOrderQuantity: variant.MinOrderQuantity,
		MaxOrderQuantity: variant.MaxOrderQuantity,
		IsActive:         variant.IsActive,
		InStock:          variant.IsActive && variant.StockQuantity > 0,
	}
}

func toProductDTO(product models.Product) ProductDTO {
	variants := make([]VariantAvailability, 0, len(product.Variants))
	for _, variant := range product.Variants {
		variants = append(variants, toAvailability(variant))
	}
	return ProductDTO{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		IsActive:    product.IsActive,
		Variants:    variants,
	}
}
