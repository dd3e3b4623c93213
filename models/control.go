package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

const (
	ControlDebtors   = "drs_ctl"
	ControlCreditors = "crs_ctl"
	ControlVat       = "vat_ctl"
)

// VAT transaction source types.
const (
	VatSourceGeneral   = "G"
	VatSourceDebtors   = "D"
	VatSourceCreditors = "C"
)

// Ctlctl maps a control code to its general ledger account.
type Ctlctl struct {
	CtlCono   int    `gorm:"column:ctl_cono;primaryKey;autoIncrement:false" json:"ctl_cono"`
	CtlCode   string `gorm:"column:ctl_code;primaryKey;size:10" json:"ctl_code"`
	CtlDesc   string `gorm:"column:ctl_desc;size:30" json:"ctl_desc"`
	CtlConacc int    `gorm:"column:ctl_conacc;not null" json:"ctl_conacc"`
}

func (Ctlctl) TableName() string { return "ctlctl" }

// Ctlvtf is a VAT transaction from any ledger. vtt_acno holds text keys for every source type.
type Ctlvtf struct {
	VttSeq   int    `gorm:"column:vtt_seq;primaryKey;autoIncrement" json:"vtt_seq"`
	VttCono  int    `gorm:"column:vtt_cono;index;not null" json:"vtt_cono"`
	VttCode  string `gorm:"column:vtt_code;size:1" json:"vtt_code"`
	VttVtyp  string `gorm:"column:vtt_vtyp;size:1" json:"vtt_vtyp"` // I input, O output
	VttStyp  string `gorm:"column:vtt_styp;size:1;not null" json:"vtt_styp"`
	VttTtyp  int    `gorm:"column:vtt_ttyp" json:"vtt_ttyp"`
	VttChain int    `gorm:"column:vtt_chain;default:0" json:"vtt_chain"`
	VttAcno  string `gorm:"column:vtt_acno;size:7;not null" json:"vtt_acno"`
	VttRefno string `gorm:"column:vtt_refno;size:9" json:"vtt_refno"`
	VttRefdt int    `gorm:"column:vtt_refdt" json:"vtt_refdt"`
	VttBatch string `gorm:"column:vtt_batch;size:7" json:"vtt_batch"`
	VttCurdt int    `gorm:"column:vtt_curdt" json:"vtt_curdt"`
	VttExc   Money  `gorm:"column:vtt_exc;default:0" json:"vtt_exc"`
	VttTax   Money  `gorm:"column:vtt_tax;default:0" json:"vtt_tax"`
	VttCapnm string `gorm:"column:vtt_capnm;size:20" json:"vtt_capnm"`
}

func (Ctlvtf) TableName() string { return "ctlvtf" }

// Ctlbat is a batch header: the number and value of transactions captured under one batch.
type Ctlbat struct {
	CtbCono  int       `gorm:"column:ctb_cono;primaryKey;autoIncrement:false" json:"ctb_cono"`
	CtbRtyp  string    `gorm:"column:ctb_rtyp;primaryKey;size:2" json:"ctb_rtyp"`
	CtbBatno string    `gorm:"column:ctb_batno;primaryKey;size:7" json:"ctb_batno"`
	CtbCurdt int       `gorm:"column:ctb_curdt" json:"ctb_curdt"`
	CtbTrno  int       `gorm:"column:ctb_trno;default:0" json:"ctb_trno"`
	CtbTrval Money     `gorm:"column:ctb_trval;default:0" json:"ctb_trval"`
	CtbCapnm string    `gorm:"column:ctb_capnm;size:20" json:"ctb_capnm"`
	CtbCapdt time.Time `gorm:"column:ctb_capdt;autoUpdateTime" json:"ctb_capdt"`
}

func (Ctlbat) TableName() string { return "ctlbat" }

// GetControlAccount returns the GL account number behind a control code.
func GetControlAccount(ctx context.Context, tx *gorm.DB, company int, code string) (int, error) {
	var ctl Ctlctl
	err := tx.WithContext(ctx).Where("ctl_cono = ? AND ctl_code = ?", company, code).Take(&ctl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("control account %s: %w", code, utils.ErrorRecordNotFound)
	}
	if err != nil {
		return 0, err
	}
	return ctl.CtlConacc, nil
}

// AddToBatch creates or extends a batch header.
func AddToBatch(ctx context.Context, tx *gorm.DB, header Ctlbat) error {
	var existing Ctlbat
	err := tx.WithContext(ctx).
		Where("ctb_cono = ? AND ctb_rtyp = ? AND ctb_batno = ?", header.CtbCono, header.CtbRtyp, header.CtbBatno).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.WithContext(ctx).Create(&header).Error
	}
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&Ctlbat{}).
		Where("ctb_cono = ? AND ctb_rtyp = ? AND ctb_batno = ?", header.CtbCono, header.CtbRtyp, header.CtbBatno).
		Updates(map[string]interface{}{
			"ctb_trno":  existing.CtbTrno + header.CtbTrno,
			"ctb_trval": existing.CtbTrval.Add(header.CtbTrval.Decimal),
			"ctb_capnm": header.CtbCapnm,
		}).Error
}
