package repository

import (
	"RxDash/internal/modules/notification/domain/entity"
	"context"
)

// ReadAuditRepository 已读接口审计仓储
type ReadAuditRepository interface {
	// Record 写入一条审计记录
	Record(ctx context.Context, audit *entity.ReadAudit) error

	// ListRecent 按时间倒序列出某个运营账号最近的审计记录，outcome 为空表示不过滤
	ListRecent(ctx context.Context, principal string, outcome string, limit int) ([]*entity.ReadAudit, error)
}
