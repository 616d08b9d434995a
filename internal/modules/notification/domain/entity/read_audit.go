package entity

import "time"

const (
	AuditActionReadOne = "read_one"
	AuditActionReadAll = "read_all"
)

// ReadAudit 一次已读接口调用的结果记录，用于事后核对本地与上游的不一致窗口
type ReadAudit struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	AuditId   string    `gorm:"column:audit_id;type:char(20);uniqueIndex;not null" json:"auditId"`
	Principal string    `gorm:"column:principal;type:varchar(64);index;not null;default:''" json:"principal"`
	Action    string    `gorm:"column:action;type:varchar(16);not null" json:"action"`
	LocalId   string    `gorm:"column:local_id;type:varchar(64)" json:"localId,omitempty"`
	RemoteId  string    `gorm:"column:remote_id;type:varchar(64)" json:"remoteId,omitempty"`
	Outcome   string    `gorm:"column:outcome;type:varchar(16);index;not null" json:"outcome"`
	Status    int       `gorm:"column:status;not null;default:0" json:"status"`
	Error     string    `gorm:"column:error;type:varchar(512)" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime;not null" json:"createdAt"`
}

func (ReadAudit) TableName() string {
	return "notification_read_audit"
}
