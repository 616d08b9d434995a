package persistence

import (
	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/repository"
	"context"

	"gorm.io/gorm"
)

const maxAuditPage = 200

type readAuditRepositoryImpl struct {
	db *gorm.DB
}

// NewReadAuditRepository 创建已读审计仓储实现
func NewReadAuditRepository(db *gorm.DB) repository.ReadAuditRepository {
	return &readAuditRepositoryImpl{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.ReadAudit{})
}

func (r *readAuditRepositoryImpl) Record(ctx context.Context, audit *entity.ReadAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *readAuditRepositoryImpl) ListRecent(ctx context.Context, principal string, outcome string, limit int) ([]*entity.ReadAudit, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	q := r.db.WithContext(ctx).Where("principal = ?", principal)
	if outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	var audits []*entity.ReadAudit
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&audits).Error
	return audits, err
}
