package repository

import (
	"RxDash/internal/modules/notification/domain/entity"
	"context"
)

// SnapshotRepository 通知列表快照，用于进程重启后恢复
type SnapshotRepository interface {
	Save(ctx context.Context, principal string, records []entity.Notification) error
	// Load 没有快照时返回 nil, nil
	Load(ctx context.Context, principal string) ([]entity.Notification, error)
	Delete(ctx context.Context, principal string) error
}
