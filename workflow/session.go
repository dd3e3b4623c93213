package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/utils"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("tartan_backend/workflow")

const postingLockTTL = 5 * time.Minute

// Confirmer asks the operator whether pending changes should be kept.
type Confirmer interface {
	Confirm(ctx context.Context, summary string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, summary string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, summary string) (bool, error) {
	return f(ctx, summary)
}

// Session is one operator unit of work against a company: every write goes through Tx()
// and is kept only by Commit.
type Session struct {
	ctx           context.Context
	company       int
	correlationId string
	tx            *gorm.DB
	redisLock     *redislock.Lock
	dbLock        bool
	changes       map[string]int64
	closed        bool
}

// BeginSession opens a transaction for the context company and takes its posting lock.
func BeginSession(ctx context.Context, db *gorm.DB) (*Session, error) {
	logger := config.GetLogger()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	company, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || company <= 0 {
		return nil, errors.New("company is required")
	}
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	}

	lock, err := utils.CompanyLock(ctx, company, "posting", postingLockTTL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ctx:           ctx,
		company:       company,
		correlationId: correlationId,
		redisLock:     lock,
		changes:       map[string]int64{},
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.releaseRedisLock()
		config.LogError(logger, "session.go", "BeginSession", "Begin", company, tx.Error)
		return nil, tx.Error
	}
	s.tx = tx

	if tx.Dialector.Name() == "mysql" {
		if err := AcquireCompanyPostingLock(tx, company); err != nil {
			tx.Rollback()
			s.releaseRedisLock()
			config.LogError(logger, "session.go", "BeginSession", "AcquireCompanyPostingLock", company, err)
			return nil, err
		}
		s.dbLock = true
	}
	return s, nil
}

func (s *Session) Tx() *gorm.DB {
	return s.tx
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Company() int {
	return s.company
}

func (s *Session) CorrelationId() string {
	return s.correlationId
}

func (s *Session) Closed() bool {
	return s.closed
}

func (s *Session) record(table string, rows int64) {
	if rows <= 0 {
		return
	}
	s.changes[table] += rows
}

// Pending reports whether the session holds uncommitted writes.
func (s *Session) Pending() bool {
	return !s.closed && len(s.changes) > 0
}

// Changes returns the rows written so far per table.
func (s *Session) Changes() map[string]int64 {
	out := make(map[string]int64, len(s.changes))
	for k, v := range s.changes {
		out[k] = v
	}
	return out
}

func (s *Session) Summary() string {
	tables := make([]string, 0, len(s.changes))
	for t := range s.changes {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	lines := make([]string, 0, len(tables))
	for _, t := range tables {
		lines = append(lines, fmt.Sprintf("%s: %d row(s)", t, s.changes[t]))
	}
	return strings.Join(lines, "\n")
}

func (s *Session) Commit() error {
	if s.closed {
		return utils.ErrSessionClosed
	}
	s.closed = true
	defer s.releaseRedisLock()
	if s.dbLock {
		ReleaseCompanyPostingLock(s.tx, s.company)
	}
	if err := s.tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "session.go", "Commit", "Commit", s.company, err)
		return err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"field":          "Session.Commit",
		"company":        s.company,
		"correlation_id": s.correlationId,
		"changes":        s.changes,
	}).Info("session committed")
	return nil
}

func (s *Session) Rollback() error {
	if s.closed {
		return utils.ErrSessionClosed
	}
	s.closed = true
	defer s.releaseRedisLock()
	if s.dbLock {
		ReleaseCompanyPostingLock(s.tx, s.company)
	}
	if err := s.tx.Rollback().Error; err != nil {
		config.LogError(config.GetLogger(), "session.go", "Rollback", "Rollback", s.company, err)
		return err
	}
	return nil
}

// CommitWithConfirm commits silently when nothing is pending. Otherwise it asks c and
// commits on yes, rolls back on no or on error. The bool reports whether changes were kept.
func (s *Session) CommitWithConfirm(ctx context.Context, c Confirmer) (bool, error) {
	if s.closed {
		return false, utils.ErrSessionClosed
	}
	if !s.Pending() {
		return true, s.Commit()
	}
	ok, err := c.Confirm(ctx, s.Summary())
	if err != nil {
		_ = s.Rollback()
		return false, err
	}
	if !ok {
		return false, s.Rollback()
	}
	if err := s.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) releaseRedisLock() {
	if s.redisLock == nil {
		return
	}
	if err := s.redisLock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		config.GetLogger().WithFields(logrus.Fields{
			"field":   "Session.releaseRedisLock",
			"company": s.company,
		}).Warn("failed to release redis lock: " + err.Error())
	}
	s.redisLock = nil
}
