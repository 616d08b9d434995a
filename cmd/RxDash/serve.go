package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpServer "RxDash/api/http"
	"RxDash/internal/config"
	"RxDash/internal/initial"
	"RxDash/internal/modules/notification/application/service"
	"RxDash/internal/modules/notification/domain/repository"
	"RxDash/internal/modules/notification/domain/store"
	"RxDash/internal/modules/notification/infrastructure/apiclient"
	"RxDash/internal/modules/notification/infrastructure/cache"
	"RxDash/internal/modules/notification/infrastructure/mcptools"
	"RxDash/internal/modules/notification/infrastructure/mq"
	"RxDash/internal/modules/notification/infrastructure/mq/kafka"
	"RxDash/internal/modules/notification/infrastructure/persistence"
	"RxDash/internal/modules/notification/infrastructure/socket"
	"RxDash/internal/modules/notification/interface/event"
	"RxDash/internal/modules/notification/interface/scheduler"
	"RxDash/pkg/ws"
	"RxDash/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serve(parent context.Context, conf *config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New()
	session := service.NewSessionService(conf.JwtConfig.Key)
	if conf.SessionConfig.Token != "" {
		if err := session.SetToken(conf.SessionConfig.Token); err != nil {
			zlog.Warn("configured session token rejected, waiting for /session/token", zap.Error(err))
		}
	}

	// 已读审计（MySQL，可选）
	var audits repository.ReadAuditRepository
	db, err := initial.NewGormDB(conf.MysqlConfig, conf.AppName)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	if db != nil {
		if err := persistence.AutoMigrate(db); err != nil {
			return fmt.Errorf("mysql migrate: %w", err)
		}
		audits = persistence.NewReadAuditRepository(db)
	}

	// 列表快照（Redis，可选）；登录主体确定后先用快照填充，再等历史补拉
	var snapshots repository.SnapshotRepository
	rdb, err := initial.NewRedisClient(conf.RedisConfig)
	if err != nil {
		zlog.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
		snapshots = cache.NewRedisSnapshotRepository(rdb, conf.SyncConfig.SnapshotTTL())
	}

	// 变更事件（Kafka，可选）
	var publisher mq.Publisher
	if len(conf.KafkaConfig.Brokers) > 0 {
		if err := kafka.EnsureTopic(
			kafka.TopicAdminConfig{Brokers: conf.KafkaConfig.Brokers, ClientID: conf.KafkaConfig.ClientID},
			kafka.TopicSpec{Name: conf.KafkaConfig.ChangeTopic, Partitions: conf.KafkaConfig.Partitions, ReplicationFactor: conf.KafkaConfig.Replication},
		); err != nil {
			zlog.Warn("kafka topic ensure failed", zap.String("topic", conf.KafkaConfig.ChangeTopic), zap.Error(err))
		}
		publisher, err = kafka.NewPublisher(kafka.PublisherConfig{Brokers: conf.KafkaConfig.Brokers, ClientID: conf.KafkaConfig.ClientID})
		if err != nil {
			zlog.Warn("kafka publisher unavailable, change events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	api := apiclient.NewReadStatusHTTPClient(conf.ApiConfig.BaseURL, session, &http.Client{Timeout: conf.ApiConfig.Timeout()})
	transport := socket.NewClient(socket.Options{
		URL:              conf.SocketConfig.URL,
		Tokens:           session,
		MinBackoff:       conf.SocketConfig.MinBackoff(),
		MaxBackoff:       conf.SocketConfig.MaxBackoff(),
		PingInterval:     conf.SocketConfig.PingInterval(),
		HandshakeTimeout: conf.SocketConfig.HandshakeTimeout(),
	})
	svc := service.NewNotificationService(st, transport, api, session, audits, service.WithSnapshots(snapshots))

	hub := ws.NewHub()
	feed := event.NewChangeFeed(svc, session, hub, event.FeedOptions{
		Publisher: publisher,
		Topic:     conf.KafkaConfig.ChangeTopic,
		Snapshots: snapshots,
	})
	refresher := scheduler.NewHistoryRefresher(conf.SyncConfig.HistoryRefreshSpec, svc, feed)

	var mcpHandler http.Handler
	if conf.MCPConfig.Enabled {
		mcpHandler = mcptools.NewHTTPHandler(mcptools.NewNotificationMCPServer(
			mcptools.ServerConfig{Name: conf.MCPConfig.Name, Version: conf.MCPConfig.Version}, svc))
	}

	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: httpServer.NewEngine(httpServer.Deps{
			Conf:          conf,
			Hub:           hub,
			Notifications: svc,
			Session:       session,
			MCP:           mcpHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	feed.Start()
	svc.Start()
	if err := refresher.Start(); err != nil {
		return fmt.Errorf("history refresher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(transport.Run(gctx))
	})
	g.Go(func() error {
		return feed.Run(gctx)
	})
	g.Go(func() error {
		zlog.Info("rxdash gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("rxdash shutting down")
		refresher.Stop()
		svc.Stop()
		hub.CloseAll()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	feed.Stop()
	if snapshots != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := feed.SaveSnapshot(sctx); serr != nil {
			zlog.Warn("final snapshot save failed", zap.Error(serr))
		}
		cancel()
	}
	zlog.Info("rxdash stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
