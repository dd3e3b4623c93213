package models

import "time"

// Control account drift detection output.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	RepCono       int       `gorm:"column:rep_cono;index;not null" json:"rep_cono"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. CONTROL_ACCOUNT
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // control code, e.g. drs_ctl
	EntityId      int       `gorm:"index;not null" json:"entity_id"`           // GL account number
	Period        int       `gorm:"not null" json:"period"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReconciliationReport) TableName() string { return "reconciliation_reports" }
