package models

type Crsmst struct {
	CrmCono int    `gorm:"column:crm_cono;primaryKey;autoIncrement:false" json:"crm_cono"`
	CrmAcno string `gorm:"column:crm_acno;primaryKey;size:7" json:"crm_acno"`
	CrmName string `gorm:"column:crm_name;size:30" json:"crm_name"`
	CrmStat string `gorm:"column:crm_stat;size:1;default:N" json:"crm_stat"`
}

func (Crsmst) TableName() string { return "crsmst" }

type Crstrn struct {
	CrtSeq    int    `gorm:"column:crt_seq;primaryKey;autoIncrement" json:"crt_seq"`
	CrtCono   int    `gorm:"column:crt_cono;index:idx_crstrn_acno,priority:1;not null" json:"crt_cono"`
	CrtAcno   string `gorm:"column:crt_acno;index:idx_crstrn_acno,priority:2;size:7;not null" json:"crt_acno"`
	CrtType   int    `gorm:"column:crt_type;not null" json:"crt_type"`
	CrtRef1   string `gorm:"column:crt_ref1;size:9" json:"crt_ref1"`
	CrtBatch  string `gorm:"column:crt_batch;size:7" json:"crt_batch"`
	CrtTrdt   int    `gorm:"column:crt_trdt" json:"crt_trdt"`
	CrtCurdt  int    `gorm:"column:crt_curdt" json:"crt_curdt"`
	CrtTramt  Money  `gorm:"column:crt_tramt;default:0" json:"crt_tramt"`
	CrtTaxamt Money  `gorm:"column:crt_taxamt;default:0" json:"crt_taxamt"`
	CrtDesc   string `gorm:"column:crt_desc;size:30" json:"crt_desc"`
}

func (Crstrn) TableName() string { return "crstrn" }

type Crsage struct {
	CraSeq  int    `gorm:"column:cra_seq;primaryKey;autoIncrement" json:"cra_seq"`
	CraCono int    `gorm:"column:cra_cono;index;not null" json:"cra_cono"`
	CraAcno string `gorm:"column:cra_acno;size:7;not null" json:"cra_acno"`
	CraType int    `gorm:"column:cra_type" json:"cra_type"`
	CraRef1 string `gorm:"column:cra_ref1;size:9" json:"cra_ref1"`
	CraAtyp int    `gorm:"column:cra_atyp" json:"cra_atyp"`
	CraAref string `gorm:"column:cra_aref;size:9" json:"cra_aref"`
	CraAmt  Money  `gorm:"column:cra_amt;default:0" json:"cra_amt"`
}

func (Crsage) TableName() string { return "crsage" }
