/*
 * @module service/data_quality/profiler
 * @description 列画像，按列类型计算计数、极值、均值与总体标准差
 * @architecture 分层架构 - 数据质量服务层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 读取列目录 -> 计数 -> 数值列聚合+两遍方差 / 文本列长度聚合 -> 列画像
 * @rules 空字符串按空值计；不适用的统计量为 nil；结果不缓存不持久化
 * @dependencies math
 * @refs service/data_quality/datasource.go
 */

package data_quality

import (
	"context"
	"math"
)

// Profiler 列画像
type Profiler struct {
	source DataSource
}

// NewProfiler 创建列画像器
func NewProfiler(source DataSource) *Profiler {
	return &Profiler{source: source}
}

// Profile 按目录顺序返回每一列的画像
func (p *Profiler) Profile(ctx context.Context, table string) ([]ColumnProfile, error) {
	columns, err := p.source.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	total, err := p.source.CountRows(ctx, table, "", All())
	if err != nil {
		return nil, err
	}

	profiles := make([]ColumnProfile, 0, len(columns))
	for _, col := range columns {
		profile, err := p.profileColumn(ctx, table, col, total)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

func (p *Profiler) profileColumn(ctx context.Context, table string, col ColumnInfo, total int64) (*ColumnProfile, error) {
	profile := &ColumnProfile{
		Table:      table,
		Column:     col.Name,
		DataType:   col.DeclaredType,
		TypeClass:  col.Class,
		TotalCount: total,
	}

	var err error
	if profile.NullCount, err = p.source.CountRows(ctx, table, col.Name, NullOrEmpty()); err != nil {
		return nil, err
	}
	if profile.DistinctCount, err = p.source.CountDistinct(ctx, table, col.Name, NotNullOrEmpty()); err != nil {
		return nil, err
	}
	profile.NullPercentage = Percentage(profile.NullCount, total)
	profile.DistinctPercentage = Percentage(profile.DistinctCount, total)

	switch {
	case col.Class.IsNumeric():
		agg, err := p.source.Aggregate(ctx, table, col.Name, ProjectValue)
		if err != nil {
			return nil, err
		}
		profile.MinValue, profile.MaxValue, profile.AvgValue = agg.Min, agg.Max, agg.Mean
		if agg.Mean != nil {
			msd, err := p.source.SquaredDeviation(ctx, table, col.Name, *agg.Mean)
			if err != nil {
				return nil, err
			}
			if msd != nil {
				std := math.Sqrt(math.Max(*msd, 0))
				profile.StdDev = &std
			}
		}
	case col.Class == TypeClassText:
		agg, err := p.source.Aggregate(ctx, table, col.Name, ProjectLength)
		if err != nil {
			return nil, err
		}
		profile.MinValue, profile.MaxValue, profile.AvgValue = agg.Min, agg.Max, agg.Mean
	}
	return profile, nil
}
