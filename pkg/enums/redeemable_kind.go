package enums

// RedeemableKind tags the catalog entry behind an activation.
type RedeemableKind string

const (
	RedeemableKindOffer     RedeemableKind = "offer"
	RedeemableKindFlashDeal RedeemableKind = "flash_deal"
)

var redeemableKinds = []RedeemableKind{RedeemableKindOffer, RedeemableKindFlashDeal}

func (k RedeemableKind) String() string { return string(k) }
func (k RedeemableKind) IsValid() bool  { return known(k, redeemableKinds) }

func ParseRedeemableKind(value string) (RedeemableKind, error) {
	return parse("redeemable kind", value, redeemableKinds)
}
