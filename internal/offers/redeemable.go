package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/geo"
)

// Ref addresses a catalog entry by kind and id.
type Ref struct {
	Kind enums.RedeemableKind
	ID   uuid.UUID
}

// Redeemable is either an Offer or a FlashDeal. Exactly one of the variants is set.
type Redeemable struct {
	kind  enums.RedeemableKind
	offer *models.Offer
	deal  *models.FlashDeal
}

func FromOffer(o *models.Offer) Redeemable {
	return Redeemable{kind: enums.RedeemableKindOffer, offer: o}
}

func FromFlashDeal(d *models.FlashDeal) Redeemable {
	return Redeemable{kind: enums.RedeemableKindFlashDeal, deal: d}
}

func (r Redeemable) Kind() enums.RedeemableKind { return r.kind }

// Offer returns the offer variant.
func (r Redeemable) Offer() (*models.Offer, bool) {
	return r.offer, r.offer != nil
}

// FlashDeal returns the flash deal variant.
func (r Redeemable) FlashDeal() (*models.FlashDeal, bool) {
	return r.deal, r.deal != nil
}

func (r Redeemable) Ref() Ref {
	return Ref{Kind: r.kind, ID: r.ID()}
}

func (r Redeemable) ID() uuid.UUID {
	if r.deal != nil {
		return r.deal.ID
	}
	if r.offer != nil {
		return r.offer.ID
	}
	return uuid.Nil
}

func (r Redeemable) Name() string {
	if r.deal != nil {
		return r.deal.Name
	}
	if r.offer != nil {
		return r.offer.Name
	}
	return ""
}

// Price is the listed price charged to redeem, nil when the entry is free.
func (r Redeemable) Price() *decimal.Decimal {
	switch {
	case r.deal != nil:
		if r.deal.DiscountedPrice.IsPositive() {
			p := r.deal.DiscountedPrice
			return &p
		}
		return nil
	case r.offer != nil:
		if r.offer.Price != nil && r.offer.Price.IsPositive() {
			p := *r.offer.Price
			return &p
		}
		return nil
	}
	return nil
}

// OldPrice is the reference price used to compute savings.
func (r Redeemable) OldPrice() *decimal.Decimal {
	switch {
	case r.deal != nil:
		p := r.deal.OriginalPrice
		return &p
	case r.offer != nil && r.offer.OldPrice != nil:
		p := *r.offer.OldPrice
		return &p
	}
	return nil
}

// Saved is oldPrice minus price when both are present, zero otherwise.
func (r Redeemable) Saved() decimal.Decimal {
	switch {
	case r.deal != nil:
		return r.deal.OriginalPrice.Sub(r.deal.DiscountedPrice)
	case r.offer != nil && r.offer.Price != nil && r.offer.OldPrice != nil:
		return r.offer.OldPrice.Sub(*r.offer.Price)
	}
	return decimal.Zero
}

func (r Redeemable) Location() geo.Point {
	switch {
	case r.deal != nil:
		return geo.Point{Lat: r.deal.Lat, Lng: r.deal.Lng}
	case r.offer != nil:
		return geo.Point{Lat: r.offer.Lat, Lng: r.offer.Lng}
	}
	return geo.Point{}
}

// CheckRedeemable returns a STATE_CONFLICT error when the entry cannot be
// activated at now. Flash deal expiry is decided here, at read time.
func (r Redeemable) CheckRedeemable(now time.Time, loc *time.Location) error {
	switch {
	case r.deal != nil:
		d := r.deal
		if !d.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flash deal is not active")
		}
		if now.Before(d.StartTime) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flash deal has not started yet")
		}
		if !now.Before(d.EndTime) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flash deal has ended")
		}
		if d.MaxQuantity > 0 && d.SoldQuantity >= d.MaxQuantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flash deal is sold out")
		}
		return nil
	case r.offer != nil:
		if !r.offer.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is not active")
		}
		schedule, err := ParseSchedule(r.offer.Schedule)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "offer schedule is malformed")
		}
		if !schedule.Allows(now, loc) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is outside its availability hours")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
}

// View is the shared projection of either variant for list and map display.
type View struct {
	ID           uuid.UUID            `json:"id"`
	Kind         enums.RedeemableKind `json:"kind"`
	Name         string               `json:"name"`
	MerchantName string               `json:"merchant_name"`
	ImageURL     *string              `json:"image_url,omitempty"`
	Category     string               `json:"category"`
	Description  *string              `json:"description,omitempty"`
	Address      string               `json:"address"`
	Location     geo.Point            `json:"location"`
	Rating       *float64             `json:"rating,omitempty"`
	Price        *decimal.Decimal     `json:"price,omitempty"`
	OldPrice     *decimal.Decimal     `json:"old_price,omitempty"`
	Savings      *decimal.Decimal     `json:"savings,omitempty"`
	EndsAt       *time.Time           `json:"ends_at,omitempty"`
	Remaining    *int                 `json:"remaining,omitempty"`
	DistanceKm   *float64             `json:"distance_km,omitempty"`
}

func (r Redeemable) View() View {
	v := View{
		ID:       r.ID(),
		Kind:     r.kind,
		Name:     r.Name(),
		Location: r.Location(),
		Price:    r.Price(),
		OldPrice: r.OldPrice(),
	}
	if r.deal != nil || (r.offer != nil && r.offer.Price != nil && r.offer.OldPrice != nil) {
		saved := r.Saved()
		v.Savings = &saved
	}
	switch {
	case r.deal != nil:
		d := r.deal
		v.MerchantName = d.MerchantName
		v.ImageURL = d.ImageURL
		v.Category = d.Category
		v.Description = d.Description
		v.Address = d.Address
		end := d.EndTime
		v.EndsAt = &end
		if d.MaxQuantity > 0 {
			left := d.MaxQuantity - d.SoldQuantity
			if left < 0 {
				left = 0
			}
			v.Remaining = &left
		}
	case r.offer != nil:
		o := r.offer
		v.MerchantName = o.MerchantName
		v.ImageURL = o.ImageURL
		v.Category = o.Category
		v.Description = o.Description
		v.Address = o.Address
		v.Rating = o.Rating
	}
	return v
}

// Pin is the tuple consumed by the map renderer.
type Pin struct {
	ID    uuid.UUID            `json:"id"`
	Kind  enums.RedeemableKind `json:"kind"`
	Lat   float64              `json:"lat"`
	Lng   float64              `json:"lng"`
	Label string               `json:"label"`
}

func (r Redeemable) Pin() Pin {
	loc := r.Location()
	return Pin{ID: r.ID(), Kind: r.kind, Lat: loc.Lat, Lng: loc.Lng, Label: r.Name()}
}
