/*
 * @module api/controllers/quality_controller
 * @description 数据质量控制器，提供检查执行、规则管理、结果查询、质量报表和列画像接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 请求接收 -> 参数校验 -> 业务逻辑处理 -> 响应返回
 * @rules 规则配置在写入时校验；配置错误返回400，规则不存在返回404，表名不在目录中返回404
 * @dependencies net/http, github.com/go-chi/chi/v5, github.com/go-chi/render, github.com/spf13/cast
 * @refs service/data_quality/, service/models/
 */

package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// QualityRunner 执行检查批次
type QualityRunner interface {
	Run(ctx context.Context) (*data_quality.RunReport, error)
}

// RuleRepository 规则管理
type RuleRepository interface {
	ListRules(ctx context.Context, filter data_quality.RuleFilter) ([]models.QualityRule, error)
	GetRule(ctx context.Context, id int64) (*models.QualityRule, error)
	CreateRule(ctx context.Context, rule *data_quality.Rule, description, operator string) (*models.QualityRule, error)
	UpdateRule(ctx context.Context, rule *data_quality.Rule, description, operator string) (*models.QualityRule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// ResultReader 结果查询
type ResultReader interface {
	ListResults(ctx context.Context, filter data_quality.ResultFilter) ([]*data_quality.Result, error)
}

// SummaryReporter 质量报表
type SummaryReporter interface {
	Summary(ctx context.Context) (*data_quality.QualitySummary, error)
}

// TableProfiler 列画像
type TableProfiler interface {
	Profile(ctx context.Context, table string) ([]data_quality.ColumnProfile, error)
}

// QualityController 数据质量控制器
type QualityController struct {
	runner   QualityRunner
	rules    RuleRepository
	results  ResultReader
	reports  SummaryReporter
	profiler TableProfiler
}

// NewQualityController 创建数据质量控制器实例
func NewQualityController(runner QualityRunner, rules RuleRepository, results ResultReader,
	reports SummaryReporter, profiler TableProfiler) *QualityController {
	return &QualityController{
		runner:   runner,
		rules:    rules,
		results:  results,
		reports:  reports,
		profiler: profiler,
	}
}

// RuleRequest 创建/更新规则请求
type RuleRequest struct {
	TableName      string                 `json:"table_name" example:"customers"`
	ColumnName     string                 `json:"column_name" example:"email"`
	RuleType       string                 `json:"rule_type" example:"format_check"`
	RuleConfig     map[string]interface{} `json:"rule_config"`
	ThresholdValue *float64               `json:"threshold_value" example:"10"`
	IsActive       *bool                  `json:"is_active" example:"true"`
	Description    string                 `json:"description" example:"邮箱格式校验"`
}

// ProfileResponse 表画像响应
type ProfileResponse struct {
	TableName  string                       `json:"table_name"`
	ProfiledAt time.Time                    `json:"profiled_at"`
	Columns    []data_quality.ColumnProfile `json:"columns"`
}

// RunChecks 执行全部启用规则
// @Summary 执行数据质量检查
// @Description 并发执行全部启用的质量规则，结果按规则ID顺序写入结果日志
// @Tags 数据质量
// @Produce json
// @Success 200 {object} APIResponse{data=data_quality.RunReport}
// @Failure 500 {object} APIResponse
// @Router /quality/run [post]
func (c *QualityController) RunChecks(w http.ResponseWriter, r *http.Request) {
	report, err := c.runner.Run(r.Context())
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "质量检查执行失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("质量检查执行完成", report))
}

// GetQualityRules 获取质量规则列表
// @Summary 获取数据质量规则列表
// @Description 获取质量规则列表，支持按表名和启用状态筛选
// @Tags 数据质量
// @Produce json
// @Param table_name query string false "表名"
// @Param active query bool false "只返回启用的规则"
// @Success 200 {object} APIResponse{data=[]models.QualityRule}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/rules [get]
func (c *QualityController) GetQualityRules(w http.ResponseWriter, r *http.Request) {
	filter := data_quality.RuleFilter{Table: r.URL.Query().Get("table_name")}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := cast.ToBoolE(v)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, "active 参数无效", err)
			return
		}
		filter.ActiveOnly = active
	}

	rules, err := c.rules.ListRules(r.Context(), filter)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "获取质量规则失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取质量规则成功", rules))
}

// GetQualityRule 获取质量规则详情
// @Summary 获取数据质量规则详情
// @Tags 数据质量
// @Produce json
// @Param id path int true "规则ID"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [get]
func (c *QualityController) GetQualityRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	rule, err := c.rules.GetRule(r.Context(), id)
	if err != nil {
		c.renderRuleError(w, r, "获取质量规则失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取质量规则成功", rule))
}

// CreateQualityRule 创建质量规则
// @Summary 创建数据质量规则
// @Description 创建新的数据质量检查规则，规则配置按类型校验
// @Tags 数据质量
// @Accept json
// @Produce json
// @Param rule body RuleRequest true "质量规则信息"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/rules [post]
func (c *QualityController) CreateQualityRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "请求参数格式错误", err)
		return
	}

	rule := &data_quality.Rule{
		Table:  req.TableName,
		Column: req.ColumnName,
		Kind:   data_quality.RuleKind(req.RuleType),
		Active: true,
	}
	if req.ThresholdValue != nil {
		rule.Threshold = *req.ThresholdValue
	}
	if req.IsActive != nil {
		rule.Active = *req.IsActive
	}
	cfg, err := data_quality.DecodeRuleConfig(rule.Kind, req.RuleConfig)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "规则配置无效", err)
		return
	}
	rule.Config = cfg

	created, err := c.rules.CreateRule(r.Context(), rule, req.Description, operatorOf(r))
	if err != nil {
		c.renderRuleError(w, r, "创建质量规则失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("质量规则创建成功", created))
}

// UpdateQualityRule 更新质量规则
// @Summary 更新数据质量规则
// @Description 更新规则，未提供的字段保持原值；修改规则类型时必须同时提供新的规则配置
// @Tags 数据质量
// @Accept json
// @Produce json
// @Param id path int true "规则ID"
// @Param rule body RuleRequest true "质量规则信息"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [put]
func (c *QualityController) UpdateQualityRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	var req RuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "请求参数格式错误", err)
		return
	}

	existing, err := c.rules.GetRule(r.Context(), id)
	if err != nil {
		c.renderRuleError(w, r, "获取质量规则失败", err)
		return
	}

	rule, description, err := mergeRule(existing, &req)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "规则配置无效", err)
		return
	}

	updated, err := c.rules.UpdateRule(r.Context(), rule, description, operatorOf(r))
	if err != nil {
		c.renderRuleError(w, r, "更新质量规则失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("质量规则更新成功", updated))
}

// DeleteQualityRule 删除质量规则
// @Summary 删除数据质量规则
// @Description 删除规则，历史检查结果保留
// @Tags 数据质量
// @Produce json
// @Param id path int true "规则ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [delete]
func (c *QualityController) DeleteQualityRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	if err := c.rules.DeleteRule(r.Context(), id); err != nil {
		c.renderRuleError(w, r, "删除质量规则失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("质量规则删除成功", nil))
}

// GetQualityResults 查询检查结果
// @Summary 查询数据质量检查结果
// @Description 按规则、批次、状态筛选检查结果；指定批次时按写入顺序返回，否则最新的在前
// @Tags 数据质量
// @Produce json
// @Param rule_id query int false "规则ID"
// @Param run_id query string false "批次ID"
// @Param status query string false "状态" Enums(PASS,FAIL,ERROR)
// @Param limit query int false "返回条数" default(100)
// @Success 200 {object} APIResponse{data=[]data_quality.Result}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/results [get]
func (c *QualityController) GetQualityResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := data_quality.ResultFilter{RunID: q.Get("run_id")}

	var err error
	if v := q.Get("rule_id"); v != "" {
		if filter.RuleID, err = cast.ToInt64E(v); err != nil {
			renderError(w, r, http.StatusBadRequest, "rule_id 参数无效", err)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = cast.ToIntE(v); err != nil || filter.Limit < 0 {
			renderError(w, r, http.StatusBadRequest, "limit 参数无效", err)
			return
		}
	}
	if v := q.Get("status"); v != "" {
		status := data_quality.Status(v)
		if status != data_quality.StatusPass && status != data_quality.StatusFail && status != data_quality.StatusError {
			renderError(w, r, http.StatusBadRequest, "status 参数无效", nil)
			return
		}
		filter.Status = status
	}

	results, err := c.results.ListResults(r.Context(), filter)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "查询检查结果失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("查询检查结果成功", results))
}

// GetQualitySummary 获取质量报表
// @Summary 获取数据质量总览
// @Description 最近24小时按表汇总、最近30天每日趋势以及最近10条未通过记录
// @Tags 数据质量
// @Produce json
// @Success 200 {object} APIResponse{data=data_quality.QualitySummary}
// @Failure 500 {object} APIResponse
// @Router /quality/summary [get]
func (c *QualityController) GetQualitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.reports.Summary(r.Context())
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "获取质量报表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取质量报表成功", summary))
}

// ProfileTable 表列画像
// @Summary 获取表的列画像
// @Description 逐列统计空值率、去重率、数值或长度的最小/最大/平均值及标准差
// @Tags 数据质量
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=ProfileResponse}
// @Failure 404 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/profile/{table} [get]
func (c *QualityController) ProfileTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	profiles, err := c.profiler.Profile(r.Context(), table)
	if err != nil {
		if errors.Is(err, data_quality.ErrIdentifierNotAllowed) {
			renderError(w, r, http.StatusNotFound, "表不存在", err)
			return
		}
		renderError(w, r, http.StatusInternalServerError, "生成列画像失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("生成列画像成功", ProfileResponse{
		TableName:  table,
		ProfiledAt: time.Now().UTC(),
		Columns:    profiles,
	}))
}

// renderRuleError 按错误类型映射HTTP状态码
func (c *QualityController) renderRuleError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var cfgErr *data_quality.ConfigurationError
	switch {
	case errors.Is(err, data_quality.ErrRuleNotFound):
		renderError(w, r, http.StatusNotFound, "质量规则不存在", err)
	case errors.As(err, &cfgErr):
		renderError(w, r, http.StatusBadRequest, "规则配置无效", err)
	default:
		renderError(w, r, http.StatusInternalServerError, msg, err)
	}
}

func ruleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := cast.ToInt64E(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		renderError(w, r, http.StatusBadRequest, "规则ID无效", err)
		return 0, false
	}
	return id, true
}

// operatorOf 操作人，取 X-User-Name 请求头
func operatorOf(r *http.Request) string {
	if user := r.Header.Get("X-User-Name"); user != "" {
		return user
	}
	return "api"
}

// mergeRule 将更新请求合并到现有规则
func mergeRule(existing *models.QualityRule, req *RuleRequest) (*data_quality.Rule, string, error) {
	rule := &data_quality.Rule{
		ID:        existing.RuleID,
		Table:     existing.TargetTable,
		Column:    existing.TargetColumn,
		Kind:      data_quality.RuleKind(existing.RuleType),
		Threshold: existing.ThresholdValue,
		Active:    existing.IsActive,
	}
	if req.TableName != "" {
		rule.Table = req.TableName
	}
	if req.ColumnName != "" {
		rule.Column = req.ColumnName
	}
	if req.RuleType != "" {
		rule.Kind = data_quality.RuleKind(req.RuleType)
	}
	if req.ThresholdValue != nil {
		rule.Threshold = *req.ThresholdValue
	}
	if req.IsActive != nil {
		rule.Active = *req.IsActive
	}

	raw := map[string]interface{}(existing.RuleConfig)
	if req.RuleConfig != nil {
		raw = req.RuleConfig
	} else if string(rule.Kind) != existing.RuleType {
		raw = nil
	}
	cfg, err := data_quality.DecodeRuleConfig(rule.Kind, raw)
	if err != nil {
		return nil, "", err
	}
	rule.Config = cfg

	description := existing.Description
	if req.Description != "" {
		description = req.Description
	}
	return rule, description, nil
}
