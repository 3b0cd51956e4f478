package offers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairos100/swissluca-backend/internal/repo"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

// Repository reads and writes catalog entries.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository whose operations run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Bound(tx)}
}

// OfferFilter narrows offer listings.
type OfferFilter struct {
	Category string
}

func (r *Repository) ListOffers(ctx context.Context, filter OfferFilter) ([]models.Offer, error) {
	query := r.DB(ctx).Where("is_active = ?", true)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	var offers []models.Offer
	if err := query.Order("name ASC").Find(&offers).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	return offers, nil
}

func (r *Repository) GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.DB(ctx).First(&offer, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return &offer, nil
}

func (r *Repository) CreateOffer(ctx context.Context, offer *models.Offer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(offer).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}
	return nil
}

// ListFlashDeals returns deals flagged active. Expiry is left to the caller,
// which compares end_time against its own clock.
func (r *Repository) ListFlashDeals(ctx context.Context) ([]models.FlashDeal, error) {
	var deals []models.FlashDeal
	err := r.DB(ctx).
		Where("is_active = ?", true).
		Order("end_time ASC").
		Find(&deals).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list flash deals")
	}
	return deals, nil
}

func (r *Repository) ListPartnerFlashDeals(ctx context.Context, partnerID uuid.UUID) ([]models.FlashDeal, error) {
	var deals []models.FlashDeal
	err := r.DB(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Find(&deals).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partner flash deals")
	}
	return deals, nil
}

func (r *Repository) GetFlashDeal(ctx context.Context, id uuid.UUID) (*models.FlashDeal, error) {
	var deal models.FlashDeal
	err := r.DB(ctx).First(&deal, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flash deal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flash deal")
	}
	return &deal, nil
}

func (r *Repository) CreateFlashDeal(ctx context.Context, deal *models.FlashDeal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(deal).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create flash deal")
	}
	return nil
}

// IncrementSold bumps sold_quantity unless the deal is already sold out.
func (r *Repository) IncrementSold(ctx context.Context, id uuid.UUID) error {
	res := r.DB(ctx).Model(&models.FlashDeal{}).
		Where("id = ?", id).
		Where("max_quantity = 0 OR sold_quantity < max_quantity").
		Update("sold_quantity", gorm.Expr("sold_quantity + 1"))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment flash deal sold quantity")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "flash deal is sold out")
	}
	return nil
}
