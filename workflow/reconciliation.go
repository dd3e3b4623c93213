package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

const CheckTypeControlAccount = "CONTROL_ACCOUNT"

type subsidiaryLedger struct {
	controlCode   string
	table         string
	companyColumn string
	amountColumn  string
	periodColumn  string
}

var subsidiaryLedgers = map[string]subsidiaryLedger{
	"DR": {controlCode: models.ControlDebtors, table: "drstrn", companyColumn: "drt_cono", amountColumn: "drt_tramt", periodColumn: "drt_curdt"},
	"CR": {controlCode: models.ControlCreditors, table: "crstrn", companyColumn: "crt_cono", amountColumn: "crt_tramt", periodColumn: "crt_curdt"},
}

type ReconciliationResult struct {
	Ledger         string          `json:"ledger"`
	Period         int             `json:"period"`
	ControlAccount int             `json:"control_account"`
	GLBalance      decimal.Decimal `json:"gl_balance"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance"`
	Difference     decimal.Decimal `json:"difference"`
	Balanced       bool            `json:"balanced"`
	CorrelationId  string          `json:"correlation_id"`
}

// ReconcileControlAccount compares a control account's GL balance with the total of its
// subsidiary ledger up to period. A mismatch is written to reconciliation_reports.
func ReconcileControlAccount(ctx context.Context, tx *gorm.DB, company int, ledger string, period int) (*ReconciliationResult, error) {
	logger := config.GetLogger()
	ledger = strings.ToUpper(strings.TrimSpace(ledger))
	sub, ok := subsidiaryLedgers[ledger]
	if !ok {
		return nil, fmt.Errorf("unknown ledger %q (expected DR or CR)", ledger)
	}
	if company <= 0 {
		return nil, fmt.Errorf("company is required")
	}

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}

	acno, err := models.GetControlAccount(ctx, tx, company, sub.controlCode)
	if err != nil {
		config.LogError(logger, "reconciliation.go", "ReconcileControlAccount", "GetControlAccount", sub.controlCode, err)
		return nil, err
	}
	glBalance, err := models.AccountBalance(ctx, tx, company, acno, period)
	if err != nil {
		return nil, err
	}
	ledgerBalance, err := models.LedgerTotal(ctx, tx, sub.table, sub.companyColumn, sub.amountColumn, sub.periodColumn, company, period)
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		Ledger:         ledger,
		Period:         period,
		ControlAccount: acno,
		GLBalance:      glBalance,
		LedgerBalance:  ledgerBalance,
		Difference:     glBalance.Sub(ledgerBalance),
		CorrelationId:  correlationId,
	}
	result.Balanced = result.Difference.IsZero()
	if result.Balanced {
		return result, nil
	}

	report := models.ReconciliationReport{
		RepCono:    company,
		CheckType:  CheckTypeControlAccount,
		EntityType: sub.controlCode,
		EntityId:   acno,
		Period:     period,
		Details: fmt.Sprintf("control account %d balance %s, %s total %s, difference %s",
			acno, glBalance.StringFixed(2), sub.table, ledgerBalance.StringFixed(2), result.Difference.StringFixed(2)),
		CorrelationId: correlationId,
	}
	if err := tx.WithContext(ctx).Create(&report).Error; err != nil {
		config.LogError(logger, "reconciliation.go", "ReconcileControlAccount", "Create report", report, err)
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"field":          "ReconcileControlAccount",
		"company":        company,
		"ledger":         ledger,
		"period":         period,
		"difference":     result.Difference.StringFixed(2),
		"correlation_id": correlationId,
	}).Warn("control account out of balance")
	return result, nil
}
