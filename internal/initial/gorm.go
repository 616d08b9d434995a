package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"RxDash/internal/config"
	"RxDash/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MysqlDSN 数据库名为空时沿用应用名
func MysqlDSN(conf config.MysqlConfig, appName string) string {
	dbName := conf.DatabaseName
	if dbName == "" {
		dbName = appName
	}
	port := conf.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.User, conf.Password, conf.Host, port, dbName)
}

// NewGormDB 未配置 MySQL 主机时返回 nil，已读审计随之关闭
func NewGormDB(conf config.MysqlConfig, appName string) (*gorm.DB, error) {
	if conf.Host == "" {
		zlog.Info("mysql not configured, read audit disabled")
		return nil, nil
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(MysqlDSN(conf, appName)), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	zlog.Info("mysql connected", zap.String("host", conf.Host), zap.Int("port", conf.Port))
	return db, nil
}
