package postgres

import "time"

// SnapshotRecord is one coin of one compact history snapshot.
type SnapshotRecord struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// unique index
	Symbol  string    `gorm:"type:text;not null;index:idx_premium_symbol;index:idx_symbol_taken_at,unique" json:"symbol"`
	TakenAt time.Time `gorm:"not null;index:idx_premium_taken_at;index:idx_symbol_taken_at,unique" json:"timestamp"`

	USDKRW       float64 `gorm:"type:numeric;not null" json:"usd_krw"`
	ReferenceUSD float64 `gorm:"type:numeric;not null" json:"ref"`

	// NULL when the exchange did not list the coin in that cycle
	UpbitPremium   *float64 `gorm:"type:numeric" json:"up,omitempty"`
	BithumbPremium *float64 `gorm:"type:numeric" json:"bt,omitempty"`

	RecordedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

// TableName overrides the default table name for GORM.
func (SnapshotRecord) TableName() string {
	return "premium_snapshot"
}
