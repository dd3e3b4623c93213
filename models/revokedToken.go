package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ctlrvk records an operator token signed off before it expired.
type Ctlrvk struct {
	RvkHash string    `gorm:"column:rvk_hash;primaryKey;size:64" json:"rvk_hash"`
	RvkOper string    `gorm:"column:rvk_oper;size:20" json:"rvk_oper"`
	RvkExp  int64     `gorm:"column:rvk_exp;index" json:"rvk_exp"` // unix seconds
	RvkDte  time.Time `gorm:"column:rvk_dte;autoCreateTime" json:"rvk_dte"`
}

func (Ctlrvk) TableName() string { return "ctlrvk" }

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RevokeToken stores the revocation until the token would have expired anyway.
// Revoking the same token twice is not an error.
func RevokeToken(ctx context.Context, tx *gorm.DB, token string, operator string, expiresAt time.Time) error {
	db := tx.WithContext(ctx)
	if err := db.Where("rvk_exp <= ?", time.Now().Unix()).Delete(&Ctlrvk{}).Error; err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Ctlrvk{
		RvkHash: tokenHash(token),
		RvkOper: operator,
		RvkExp:  expiresAt.Unix(),
	}).Error
}

func IsTokenRevoked(ctx context.Context, tx *gorm.DB, token string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&Ctlrvk{}).
		Where("rvk_hash = ? AND rvk_exp > ?", tokenHash(token), time.Now().Unix()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
