package initial

import (
	"context"
	"fmt"
	"time"

	"RxDash/internal/config"
	"RxDash/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 未配置主机时返回 nil，快照缓存随之关闭
func NewRedisClient(conf config.RedisConfig) (*goredis.Client, error) {
	if conf.Host == "" {
		zlog.Info("redis not configured, snapshot cache disabled")
		return nil, nil
	}

	port := conf.Port
	if port == 0 {
		port = 6379
	}
	addr := fmt.Sprintf("%s:%d", conf.Host, port)

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.Password,
		DB:           conf.DB,
		PoolSize:     conf.PoolSize,
		MinIdleConns: conf.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	zlog.Info("redis connected", zap.String("addr", addr))
	return client, nil
}
