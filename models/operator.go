package models

import (
	"context"
	"errors"
	"strings"

	"github.com/tartansystems/tartan_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminLevel and above may work on any company.
const AdminLevel = 9

// Ctlpwu is an operator allowed to sign on.
type Ctlpwu struct {
	UsrName string `gorm:"column:usr_name;primaryKey;size:20" json:"usr_name"`
	UsrFnam string `gorm:"column:usr_fnam;size:30" json:"usr_fnam"`
	UsrPwd  string `gorm:"column:usr_pwd;size:100;not null" json:"-"`
	UsrCoy  int    `gorm:"column:usr_coy;default:0" json:"usr_coy"` // 0 for every company
	UsrLvl  int    `gorm:"column:usr_lvl;default:0" json:"usr_lvl"`
	UsrAct  *bool  `gorm:"column:usr_act;not null;default:true" json:"usr_act"`
}

func (Ctlpwu) TableName() string { return "ctlpwu" }

func (o *Ctlpwu) IsAdmin() bool {
	return o.UsrLvl >= AdminLevel
}

// CanAccess reports whether the operator may work on company.
func (o *Ctlpwu) CanAccess(company int) bool {
	return o.IsAdmin() || o.UsrCoy == 0 || o.UsrCoy == company
}

type NewOperator struct {
	Name     string `json:"name" validate:"required,max=20"`
	FullName string `json:"full_name" validate:"max=30"`
	Password string `json:"password" validate:"required,min=4"`
	Company  int    `json:"company" validate:"gte=0"`
	Level    int    `json:"level" validate:"gte=0,lte=9"`
}

func CreateOperator(ctx context.Context, tx *gorm.DB, input NewOperator) (*Ctlpwu, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	operator := Ctlpwu{
		UsrName: strings.ToLower(strings.TrimSpace(input.Name)),
		UsrFnam: input.FullName,
		UsrPwd:  string(hashed),
		UsrCoy:  input.Company,
		UsrLvl:  input.Level,
		UsrAct:  utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&operator).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}

// AuthenticateOperator checks the password of an active operator.
func AuthenticateOperator(ctx context.Context, tx *gorm.DB, name string, password string) (*Ctlpwu, error) {
	var operator Ctlpwu
	err := tx.WithContext(ctx).Where("usr_name = ?", strings.ToLower(strings.TrimSpace(name))).Take(&operator).Error
	if err != nil {
		return nil, errors.New("invalid operator or password")
	}
	if err := utils.ComparePassword(operator.UsrPwd, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errors.New("invalid operator or password")
		}
		return nil, err
	}
	if !utils.DereferencePtr(operator.UsrAct, false) {
		return nil, errors.New("operator is disabled")
	}
	return &operator, nil
}
