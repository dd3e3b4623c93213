package models

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

// Drsmst is the debtors account master. Accounts belong to a chain store group (0 for none).
type Drsmst struct {
	DrmCono  int    `gorm:"column:drm_cono;primaryKey;autoIncrement:false" json:"drm_cono"`
	DrmChain int    `gorm:"column:drm_chain;primaryKey;autoIncrement:false" json:"drm_chain"`
	DrmAcno  string `gorm:"column:drm_acno;primaryKey;size:7" json:"drm_acno"`
	DrmName  string `gorm:"column:drm_name;size:30" json:"drm_name"`
	DrmStat  string `gorm:"column:drm_stat;size:1;default:N" json:"drm_stat"` // N normal, X redundant
}

func (Drsmst) TableName() string { return "drsmst" }

type Drstrn struct {
	DrtSeq    int    `gorm:"column:drt_seq;primaryKey;autoIncrement" json:"drt_seq"`
	DrtCono   int    `gorm:"column:drt_cono;index:idx_drstrn_acno,priority:1;not null" json:"drt_cono"`
	DrtChain  int    `gorm:"column:drt_chain;index:idx_drstrn_acno,priority:2;not null" json:"drt_chain"`
	DrtAcno   string `gorm:"column:drt_acno;index:idx_drstrn_acno,priority:3;size:7;not null" json:"drt_acno"`
	DrtType   int    `gorm:"column:drt_type;not null" json:"drt_type"`
	DrtRef1   string `gorm:"column:drt_ref1;size:9" json:"drt_ref1"`
	DrtBatch  string `gorm:"column:drt_batch;size:7" json:"drt_batch"`
	DrtTrdt   int    `gorm:"column:drt_trdt" json:"drt_trdt"`
	DrtCurdt  int    `gorm:"column:drt_curdt" json:"drt_curdt"`
	DrtTramt  Money  `gorm:"column:drt_tramt;default:0" json:"drt_tramt"`
	DrtTaxamt Money  `gorm:"column:drt_taxamt;default:0" json:"drt_taxamt"`
	DrtDesc   string `gorm:"column:drt_desc;size:30" json:"drt_desc"`
}

func (Drstrn) TableName() string { return "drstrn" }

// Drsage allocates one debtor transaction against another.
type Drsage struct {
	DraSeq  int    `gorm:"column:dra_seq;primaryKey;autoIncrement" json:"dra_seq"`
	DraCono int    `gorm:"column:dra_cono;index;not null" json:"dra_cono"`
	DraChn  int    `gorm:"column:dra_chn;not null" json:"dra_chn"`
	DraAcno string `gorm:"column:dra_acno;size:7;not null" json:"dra_acno"`
	DraType int    `gorm:"column:dra_type" json:"dra_type"`
	DraRef1 string `gorm:"column:dra_ref1;size:9" json:"dra_ref1"`
	DraAtyp int    `gorm:"column:dra_atyp" json:"dra_atyp"`
	DraAref string `gorm:"column:dra_aref;size:9" json:"dra_aref"`
	DraAmt  Money  `gorm:"column:dra_amt;default:0" json:"dra_amt"`
}

func (Drsage) TableName() string { return "drsage" }

// LedgerTotal sums a subsidiary ledger's transaction amounts up to and including period.
func LedgerTotal(ctx context.Context, tx *gorm.DB, table string, companyColumn string, amountColumn string, periodColumn string, company int, period int) (decimal.Decimal, error) {
	var total interface{}
	row := tx.WithContext(ctx).Table(table).
		Select("SUM("+amountColumn+")").
		Where(companyColumn+" = ? AND "+periodColumn+" <= ?", company, period).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return utils.ToDecimal(total)
}
