/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs main.go, service/init.go
 */

package api

import (
	"dataquality-service/api/controllers"
	"dataquality-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r chi.Router, c *service.Container) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-Name"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(c.Source)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据质量
	qualityController := controllers.NewQualityController(c.Engine, c.Rules, c.Results, c.Reports, c.Profiler)
	RegisterQualityRoutes(r, qualityController)
}

// RegisterQualityRoutes 注册数据质量路由
func RegisterQualityRoutes(r chi.Router, qc *controllers.QualityController) {
	r.Route("/quality", func(r chi.Router) {
		r.Post("/run", qc.RunChecks)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", qc.GetQualityRules)
			r.Post("/", qc.CreateQualityRule)
			r.Get("/{id}", qc.GetQualityRule)
			r.Put("/{id}", qc.UpdateQualityRule)
			r.Delete("/{id}", qc.DeleteQualityRule)
		})

		r.Get("/results", qc.GetQualityResults)
		r.Get("/summary", qc.GetQualitySummary)
		r.Get("/profile/{table}", qc.ProfileTable)
	})
}
