package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

func postingLockName(company int) string {
	return fmt.Sprintf("posting:%d", company)
}

// AcquireCompanyPostingLock serializes posting per company across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the transaction that does the posting.
func AcquireCompanyPostingLock(tx *gorm.DB, company int) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", postingLockName(company)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for company=%d", company)
	}
	return nil
}

func ReleaseCompanyPostingLock(tx *gorm.DB, company int) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", postingLockName(company)).Scan(&_ok).Error
}
