package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type JournalLine struct {
	Account     int             `json:"account" validate:"required,gt=0"`
	Reference   string          `json:"reference" validate:"max=9"`
	Description string          `json:"description" validate:"max=30"`
	Net         decimal.Decimal `json:"net"`
	Vat         decimal.Decimal `json:"vat"`
	VatCode     string          `json:"vat_code" validate:"max=1"`
}

// JournalBatch is a group of journal lines sharing a batch number, period and date.
type JournalBatch struct {
	BatchNo string        `json:"batch_no" validate:"required,max=7"`
	Period  int           `json:"period" validate:"required,gte=190001,lte=299912"` // YYYYMM
	Date    int           `json:"date" validate:"required"`                         // YYYYMMDD
	Lines   []JournalLine `json:"lines" validate:"required,min=1,dive"`
}

type BatchResult struct {
	BatchNo      string          `json:"batch_no"`
	Transactions int             `json:"transactions"`
	VatEntries   int             `json:"vat_entries"`
	Value        decimal.Decimal `json:"value"`
}

// PostJournalBatch posts a balanced batch of journals inside the session: one gentrn per line,
// a VAT gentrn and ctlvtf entry per VAT bearing line, genbal movements and the ctlbat header.
func PostJournalBatch(ctx context.Context, s *Session, batch JournalBatch) (*BatchResult, error) {
	logger := config.GetLogger()
	if s == nil || s.Closed() {
		return nil, utils.ErrSessionClosed
	}
	if err := utils.ValidateStruct(batch); err != nil {
		return nil, err
	}

	total := decimal.Zero
	debits := decimal.Zero
	hasVat := false
	for _, line := range batch.Lines {
		gross := line.Net.Add(line.Vat)
		total = total.Add(gross)
		if gross.IsPositive() {
			debits = debits.Add(gross)
		}
		if !line.Vat.IsZero() {
			hasVat = true
		}
	}
	if !total.IsZero() {
		return nil, &utils.UnbalancedBatchError{BatchNo: batch.BatchNo, Difference: total.StringFixed(2)}
	}

	ctx, span := tracer.Start(ctx, "PostJournalBatch", trace.WithAttributes(
		attribute.Int("company", s.Company()),
		attribute.String("batch", batch.BatchNo),
	))
	defer span.End()

	company := s.Company()
	tx := s.Tx().WithContext(ctx)
	operator, _ := utils.GetOperatorIdFromContext(ctx)
	glEntity, _ := models.LookupEntity("GL")

	for _, line := range batch.Lines {
		key := models.EntityKey{Company: company, Parts: []interface{}{line.Account}}
		if err := models.ValidateOldKey(ctx, tx, glEntity, key); err != nil {
			return nil, err
		}
	}

	vatAccount := 0
	if hasVat {
		acno, err := models.GetControlAccount(ctx, tx, company, models.ControlVat)
		if err != nil {
			config.LogError(logger, "batchPosting.go", "PostJournalBatch", "GetControlAccount", company, err)
			return nil, err
		}
		vatAccount = acno
	}

	result := &BatchResult{BatchNo: batch.BatchNo, Value: debits}
	for _, line := range batch.Lines {
		entries := []models.Gentrn{{
			GltCono:   company,
			GltAcno:   line.Account,
			GltCurdt:  batch.Period,
			GltTrdt:   batch.Date,
			GltType:   models.GlTypeJournal,
			GltRefno:  line.Reference,
			GltBatch:  batch.BatchNo,
			GltTramt:  models.NewMoney(line.Net),
			GltTaxamt: models.NewMoney(line.Vat),
			GltDesc:   line.Description,
			GltVatc:   line.VatCode,
			GltCapnm:  operator,
		}}
		if !line.Vat.IsZero() {
			entries = append(entries, models.Gentrn{
				GltCono:  company,
				GltAcno:  vatAccount,
				GltCurdt: batch.Period,
				GltTrdt:  batch.Date,
				GltType:  models.GlTypeVat,
				GltRefno: line.Reference,
				GltBatch: batch.BatchNo,
				GltTramt: models.NewMoney(line.Vat),
				GltDesc:  line.Description,
				GltVatc:  line.VatCode,
				GltCapnm: operator,
			})
		}
		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return nil, cascadeFailure(ctx, s, "gentrn", glEntity, models.EntityKey{Company: company, Parts: []interface{}{entries[i].GltAcno}}, err)
			}
			if err := models.AddToBalance(ctx, tx, company, entries[i].GltAcno, batch.Period, entries[i].GltTramt.Decimal); err != nil {
				return nil, cascadeFailure(ctx, s, "genbal", glEntity, models.EntityKey{Company: company, Parts: []interface{}{entries[i].GltAcno}}, err)
			}
			s.record("gentrn", 1)
			s.record("genbal", 1)
			result.Transactions++
		}

		if line.Vat.IsZero() {
			continue
		}
		vtyp := "I"
		if line.Net.IsNegative() {
			vtyp = "O"
		}
		vat := models.Ctlvtf{
			VttCono:  company,
			VttCode:  line.VatCode,
			VttVtyp:  vtyp,
			VttStyp:  models.VatSourceGeneral,
			VttTtyp:  models.GlTypeJournal,
			VttAcno:  strconv.Itoa(line.Account),
			VttRefno: line.Reference,
			VttRefdt: batch.Date,
			VttBatch: batch.BatchNo,
			VttCurdt: batch.Period,
			VttExc:   models.NewMoney(line.Net),
			VttTax:   models.NewMoney(line.Vat),
			VttCapnm: operator,
		}
		if err := tx.Create(&vat).Error; err != nil {
			return nil, cascadeFailure(ctx, s, "ctlvtf", glEntity, models.EntityKey{Company: company, Parts: []interface{}{line.Account}}, err)
		}
		s.record("ctlvtf", 1)
		result.VatEntries++
	}

	header := models.Ctlbat{
		CtbCono:  company,
		CtbRtyp:  glEntity.Code,
		CtbBatno: batch.BatchNo,
		CtbCurdt: batch.Period,
		CtbTrno:  len(batch.Lines),
		CtbTrval: models.NewMoney(debits),
		CtbCapnm: operator,
	}
	if err := models.AddToBatch(ctx, tx, header); err != nil {
		return nil, cascadeFailure(ctx, s, "ctlbat", glEntity, models.EntityKey{Company: company}, err)
	}
	s.record("ctlbat", 1)

	logger.WithFields(logrus.Fields{
		"field":          "PostJournalBatch",
		"company":        company,
		"batch":          batch.BatchNo,
		"transactions":   result.Transactions,
		"vat_entries":    result.VatEntries,
		"correlation_id": s.CorrelationId(),
	}).Info(fmt.Sprintf("posted batch value %s", debits.StringFixed(2)))
	return result, nil
}
