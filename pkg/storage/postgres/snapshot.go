package postgres

import (
	"context"
	"sort"
	"time"

	"premiumcollector/internal/premium"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// InsertSnapshot stores one row per coin. Rows already present for the same
// symbol and timestamp are left untouched. It returns the number of rows inserted.
func (p *PostgresClient) InsertSnapshot(ctx context.Context, snap premium.Snapshot) (int64, error) {
	records := ToSnapshotRecords(snap)
	if len(records) == 0 {
		return 0, nil
	}

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "taken_at"},
		},
		DoNothing: true,
	}).CreateInBatches(records, 200)

	return tx.RowsAffected, tx.Error
}

// GetSymbolHistory returns a symbol's rows taken at or after since, oldest first.
func (p *PostgresClient) GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]SnapshotRecord, error) {
	var records []SnapshotRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND taken_at >= ?", symbol, since).
		Order("taken_at ASC").
		Find(&records).Error
	return records, err
}

// DeleteSnapshotsBefore removes rows taken before the cutoff.
func (p *PostgresClient) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("taken_at < ?", before).
		Delete(&SnapshotRecord{})
	return tx.RowsAffected, tx.Error
}

// ToSnapshotRecords flattens a snapshot into rows ordered by symbol.
func ToSnapshotRecords(snap premium.Snapshot) []*SnapshotRecord {
	symbols := make([]string, 0, len(snap.Coins))
	for sym := range snap.Coins {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	fx := snap.FXRate.InexactFloat64()
	records := make([]*SnapshotRecord, 0, len(symbols))
	for _, sym := range symbols {
		c := snap.Coins[sym]
		records = append(records, &SnapshotRecord{
			Symbol:         sym,
			TakenAt:        snap.Timestamp.UTC(),
			USDKRW:         fx,
			ReferenceUSD:   c.ReferenceUSD.InexactFloat64(),
			UpbitPremium:   nullable(c.Premiums, premium.Upbit),
			BithumbPremium: nullable(c.Premiums, premium.Bithumb),
		})
	}
	return records
}

func nullable(m map[premium.ExchangeID]decimal.Decimal, ex premium.ExchangeID) *float64 {
	v, ok := m[ex]
	if !ok {
		return nil
	}
	f := v.InexactFloat64()
	return &f
}
