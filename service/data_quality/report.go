/*
 * @module service/data_quality/report
 * @description 基于结果日志的质量报表：按表汇总、按日趋势、最近失败记录
 * @architecture 分层架构 - 只读报表服务
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow quality_results 时间窗口查询 -> 内存分组统计 -> 报表
 * @rules 分组在应用层完成，不依赖特定数据库方言；日期按UTC划分
 * @dependencies gorm.io/gorm
 * @refs service/data_quality/result_sink.go
 */

package data_quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// TableSummary 单表质量汇总
type TableSummary struct {
	TableName      string  `json:"table_name"`
	TotalChecks    int     `json:"total_checks"`
	PassedChecks   int     `json:"passed_checks"`
	FailedChecks   int     `json:"failed_checks"`
	ErrorChecks    int     `json:"error_checks"`
	AvgMetricValue float64 `json:"avg_metric_value"`
}

// DailyTrend 按日质量趋势
type DailyTrend struct {
	Date           string  `json:"date"`
	TotalChecks    int     `json:"total_checks"`
	PassedChecks   int     `json:"passed_checks"`
	PassRate       float64 `json:"pass_rate"`
	AvgMetricValue float64 `json:"avg_metric_value"`
}

// QualitySummary 质量总览
type QualitySummary struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	TableSummary   []TableSummary `json:"table_summary"`
	Trends         []DailyTrend   `json:"trends"`
	RecentFailures []*Result      `json:"recent_failures"`
}

const (
	summaryWindow      = 24 * time.Hour
	trendDays          = 30
	recentFailureLimit = 10
)

// ReportService 报表服务
type ReportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReportService 创建报表服务
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, now: time.Now}
}

// Summary 最近24小时按表汇总、30天趋势与最近10条失败记录
func (s *ReportService) Summary(ctx context.Context) (*QualitySummary, error) {
	now := s.now()
	tables, err := s.TableSummary(ctx, now.Add(-summaryWindow))
	if err != nil {
		return nil, err
	}
	trends, err := s.Trends(ctx, trendDays)
	if err != nil {
		return nil, err
	}
	failures, err := s.RecentFailures(ctx, recentFailureLimit)
	if err != nil {
		return nil, err
	}
	return &QualitySummary{
		GeneratedAt:    now,
		TableSummary:   tables,
		Trends:         trends,
		RecentFailures: failures,
	}, nil
}

// TableSummary 统计 since 之后每张表的检查情况，按表名排序
func (s *ReportService) TableSummary(ctx context.Context, since time.Time) ([]TableSummary, error) {
	rows, err := s.resultsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type acc struct {
		summary TableSummary
		metric  float64
	}
	byTable := make(map[string]*acc)
	for _, row := range rows {
		a, ok := byTable[row.TargetTable]
		if !ok {
			a = &acc{summary: TableSummary{TableName: row.TargetTable}}
			byTable[row.TargetTable] = a
		}
		a.summary.TotalChecks++
		a.metric += row.MetricValue
		switch Status(row.Status) {
		case StatusPass:
			a.summary.PassedChecks++
		case StatusFail:
			a.summary.FailedChecks++
		case StatusError:
			a.summary.ErrorChecks++
		}
	}

	summaries := make([]TableSummary, 0, len(byTable))
	for _, a := range byTable {
		a.summary.AvgMetricValue = round2(a.metric / float64(a.summary.TotalChecks))
		summaries = append(summaries, a.summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].TableName < summaries[j].TableName })
	return summaries, nil
}

// Trends 最近 days 天的按日趋势，日期升序
func (s *ReportService) Trends(ctx context.Context, days int) ([]DailyTrend, error) {
	if days <= 0 {
		return nil, fmt.Errorf("趋势天数必须大于0")
	}
	since := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	rows, err := s.resultsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type acc struct {
		trend  DailyTrend
		metric float64
	}
	byDay := make(map[string]*acc)
	for _, row := range rows {
		day := row.CheckDate.UTC().Format("2006-01-02")
		a, ok := byDay[day]
		if !ok {
			a = &acc{trend: DailyTrend{Date: day}}
			byDay[day] = a
		}
		a.trend.TotalChecks++
		a.metric += row.MetricValue
		if Status(row.Status) == StatusPass {
			a.trend.PassedChecks++
		}
	}

	trends := make([]DailyTrend, 0, len(byDay))
	for _, a := range byDay {
		a.trend.AvgMetricValue = round2(a.metric / float64(a.trend.TotalChecks))
		a.trend.PassRate = round2(Percentage(int64(a.trend.PassedChecks), int64(a.trend.TotalChecks)))
		trends = append(trends, a.trend)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })
	return trends, nil
}

// RecentFailures 最近的 FAIL 结果，最新的在前
func (s *ReportService) RecentFailures(ctx context.Context, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = recentFailureLimit
	}
	var rows []models.QualityResult
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.QualityStatusFail).
		Order("check_date DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询失败记录失败: %w", err)
	}

	results := make([]*Result, 0, len(rows))
	for i := range rows {
		results = append(results, ResultFromModel(&rows[i]))
	}
	return results, nil
}

func (s *ReportService) resultsSince(ctx context.Context, since time.Time) ([]models.QualityResult, error) {
	var rows []models.QualityResult
	if err := s.db.WithContext(ctx).
		Select("table_name", "status", "metric_value", "check_date").
		Where("check_date >= ?", since.UTC()).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询质量检查结果失败: %w", err)
	}
	return rows, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
