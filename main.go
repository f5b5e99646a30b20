package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"dataquality-service/api"
	"dataquality-service/docs"
	"dataquality-service/logger"
	"dataquality-service/service"
	"dataquality-service/service/config"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title 数据质量监控服务 API
// @version 1.0
// @description 数据质量规则检查、结果记录、质量报表与列画像服务
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger.InitLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := service.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("服务初始化失败: %v", err)
	}
	defer container.Close()

	mux := chi.NewRouter()
	metricsHandler := promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{})

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if base := cfg.Server.BaseContext; base != "" {
		docs.SwaggerInfo.BasePath = base
		mux.Route(base, func(r chi.Router) {
			api.InitRoute(r, container)
			r.Handle("/metrics", metricsHandler)
			r.Handle("/swagger*", httpSwagger.Handler(httpSwagger.URL(base+"/swagger/doc.json")))
		})
	} else {
		api.InitRoute(mux, container)
		mux.Handle("/metrics", metricsHandler)
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	if container.Scheduler != nil {
		if err := container.Scheduler.Start(); err != nil {
			log.Fatalf("启动质量检查调度器失败: %v", err)
		}
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(cfg.Server.Port), mux)
	go func() {
		<-ctx.Done()
		slog.Info("收到退出信号，正在关闭服务")
		if err := s.GracefulStop(); err != nil {
			slog.Error("关闭HTTP服务失败", "error", err)
		}
	}()

	slog.Info("数据质量监控服务启动", "port", cfg.Server.Port, "base_context", cfg.Server.BaseContext)
	if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("error: %v", err)
	}
}
