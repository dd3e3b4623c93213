package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	GlTypeJournal = 4
	GlTypeVat     = 6
)

// Genmst is the general ledger account master.
type Genmst struct {
	GlmCono int    `gorm:"column:glm_cono;primaryKey;autoIncrement:false" json:"glm_cono"`
	GlmAcno int    `gorm:"column:glm_acno;primaryKey;autoIncrement:false" json:"glm_acno"`
	GlmDesc string `gorm:"column:glm_desc;size:30" json:"glm_desc"`
	GlmType string `gorm:"column:glm_type;size:1" json:"glm_type"` // P profit and loss, B balance sheet
	GlmInd  string `gorm:"column:glm_ind;size:1" json:"glm_ind"`   // D detail, H heading
}

func (Genmst) TableName() string { return "genmst" }

// Genbal holds one period movement per account.
type Genbal struct {
	GloCono int   `gorm:"column:glo_cono;primaryKey;autoIncrement:false" json:"glo_cono"`
	GloAcno int   `gorm:"column:glo_acno;primaryKey;autoIncrement:false" json:"glo_acno"`
	GloTrdt int   `gorm:"column:glo_trdt;primaryKey;autoIncrement:false" json:"glo_trdt"` // YYYYMM
	GloCyr  Money `gorm:"column:glo_cyr;default:0" json:"glo_cyr"`
}

func (Genbal) TableName() string { return "genbal" }

// Genbud holds one budget amount per account and period.
type Genbud struct {
	GlbCono  int   `gorm:"column:glb_cono;primaryKey;autoIncrement:false" json:"glb_cono"`
	GlbAcno  int   `gorm:"column:glb_acno;primaryKey;autoIncrement:false" json:"glb_acno"`
	GlbCurdt int   `gorm:"column:glb_curdt;primaryKey;autoIncrement:false" json:"glb_curdt"` // YYYYMM
	GlbTramt Money `gorm:"column:glb_tramt;default:0" json:"glb_tramt"`
}

func (Genbud) TableName() string { return "genbud" }

// Gentrn is a posted general ledger transaction.
type Gentrn struct {
	GltSeq    int       `gorm:"column:glt_seq;primaryKey;autoIncrement" json:"glt_seq"`
	GltCono   int       `gorm:"column:glt_cono;index:idx_gentrn_acno,priority:1;not null" json:"glt_cono"`
	GltAcno   int       `gorm:"column:glt_acno;index:idx_gentrn_acno,priority:2;not null" json:"glt_acno"`
	GltCurdt  int       `gorm:"column:glt_curdt;not null" json:"glt_curdt"`
	GltTrdt   int       `gorm:"column:glt_trdt;not null" json:"glt_trdt"` // YYYYMMDD
	GltType   int       `gorm:"column:glt_type;not null" json:"glt_type"`
	GltRefno  string    `gorm:"column:glt_refno;size:9" json:"glt_refno"`
	GltBatch  string    `gorm:"column:glt_batch;size:7;index" json:"glt_batch"`
	GltTramt  Money     `gorm:"column:glt_tramt;default:0" json:"glt_tramt"`
	GltTaxamt Money     `gorm:"column:glt_taxamt;default:0" json:"glt_taxamt"`
	GltDesc   string    `gorm:"column:glt_desc;size:30" json:"glt_desc"`
	GltVatc   string    `gorm:"column:glt_vatc;size:1" json:"glt_vatc"`
	GltCapnm  string    `gorm:"column:glt_capnm;size:20" json:"glt_capnm"`
	GltCapdt  time.Time `gorm:"column:glt_capdt;autoCreateTime" json:"glt_capdt"`
}

func (Gentrn) TableName() string { return "gentrn" }

// AddToBalance adds amount to the account's genbal row for period, creating the row when needed.
func AddToBalance(ctx context.Context, tx *gorm.DB, company int, acno int, period int, amount decimal.Decimal) error {
	var bal Genbal
	err := tx.WithContext(ctx).
		Where("glo_cono = ? AND glo_acno = ? AND glo_trdt = ?", company, acno, period).
		Take(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.WithContext(ctx).Create(&Genbal{
			GloCono: company,
			GloAcno: acno,
			GloTrdt: period,
			GloCyr:  NewMoney(amount),
		}).Error
	}
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&Genbal{}).
		Where("glo_cono = ? AND glo_acno = ? AND glo_trdt = ?", company, acno, period).
		Update("glo_cyr", bal.GloCyr.Add(amount)).Error
}

// AccountBalance sums an account's genbal rows up to and including period.
func AccountBalance(ctx context.Context, tx *gorm.DB, company int, acno int, period int) (decimal.Decimal, error) {
	var balances []Genbal
	err := tx.WithContext(ctx).
		Where("glo_cono = ? AND glo_acno = ? AND glo_trdt <= ?", company, acno, period).
		Find(&balances).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.GloCyr.Decimal)
	}
	return total, nil
}
