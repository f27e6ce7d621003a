package rewards

import "time"

// MilestoneClaim records a one-time reward claim. A (user, milestone) pair
// can be claimed once; only Fulfilled changes afterwards.
type MilestoneClaim struct {
	ID          uint64 `gorm:"primaryKey" json:"id"`
	UserID      uint64 `gorm:"not null;uniqueIndex:uq_claim_user_milestone,priority:1" json:"user_id"`
	MilestoneID string `gorm:"not null;uniqueIndex:uq_claim_user_milestone,priority:2" json:"milestone_id"`
	// Reference is quoted to operations staff and on the shipping label.
	Reference string `gorm:"type:varchar(36);not null;uniqueIndex" json:"reference"`

	ShipName       string `gorm:"not null" json:"ship_name"`
	ShipAddress    string `gorm:"type:text;not null" json:"ship_address"`
	ShipCity       string `gorm:"not null" json:"ship_city"`
	ShipPostalCode string `gorm:"not null" json:"ship_postal_code"`
	ShipCountry    string `gorm:"not null" json:"ship_country"`

	Fulfilled bool      `gorm:"not null;default:false" json:"fulfilled"`
	ClaimedAt time.Time `gorm:"not null" json:"claimed_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShippingInfo struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
