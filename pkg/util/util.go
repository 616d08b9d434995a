package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateNotificationID 生成本地通知 ID，N 前缀 + 19 位短 UUID，共 20 位
func GenerateNotificationID() string {
	return "N" + GenerateShortUUID()[:19]
}

// GenerateAuditID 生成已读审计记录 ID，A 前缀，共 20 位
func GenerateAuditID() string {
	return "A" + GenerateShortUUID()[:19]
}
