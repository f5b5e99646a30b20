/*
 * @module service/data_quality/datasource
 * @description 被监控数据源的只读能力抽象，检查器和画像只通过该接口访问数据
 * @architecture 接口抽象层 - 数据源与检查逻辑解耦
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 检查器 -> 计数/聚合请求 -> 数据源 -> 标量结果
 * @rules 所有表名列名必须先通过数据源目录校验；接口只读，支持并发访问
 * @dependencies context
 * @refs service/data_quality/sql_data_source.go
 */

package data_quality

import (
	"context"
	"strings"
)

// TypeClass 列类型分类
type TypeClass string

const (
	TypeClassInteger TypeClass = "integer"
	TypeClassReal    TypeClass = "real"
	TypeClassText    TypeClass = "text"
	TypeClassOther   TypeClass = "other"
)

// IsNumeric 是否为数值类型
func (c TypeClass) IsNumeric() bool {
	return c == TypeClassInteger || c == TypeClassReal
}

// ClassifyType 按声明类型归类，匹配规则参照 SQLite 类型亲和性
func ClassifyType(declared string) TypeClass {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case t == "":
		return TypeClassOther
	case strings.Contains(t, "INTERVAL"), strings.Contains(t, "POINT"):
		return TypeClassOther
	case strings.Contains(t, "INT"):
		return TypeClassInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return TypeClassReal
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return TypeClassText
	default:
		return TypeClassOther
	}
}

// ColumnInfo 列目录信息
type ColumnInfo struct {
	Name         string    `json:"name"`
	DeclaredType string    `json:"declared_type"`
	Class        TypeClass `json:"type_class"`
}

type predicateKind int

const (
	predicateAll predicateKind = iota
	predicateNullOrEmpty
	predicateNotNull
	predicateNotNullOrEmpty
	predicateOutsideRange
)

// Predicate 行过滤条件
type Predicate struct {
	kind predicateKind
	min  *float64
	max  *float64
}

// All 所有行
func All() Predicate { return Predicate{kind: predicateAll} }

// NullOrEmpty 值为 NULL 或空字符串
func NullOrEmpty() Predicate { return Predicate{kind: predicateNullOrEmpty} }

// NotNull 值非 NULL
func NotNull() Predicate { return Predicate{kind: predicateNotNull} }

// NotNullOrEmpty 值非 NULL 且非空字符串
func NotNullOrEmpty() Predicate { return Predicate{kind: predicateNotNullOrEmpty} }

// LessThan 非 NULL 且小于 v
func LessThan(v float64) Predicate { return Predicate{kind: predicateOutsideRange, min: &v} }

// GreaterThan 非 NULL 且大于 v
func GreaterThan(v float64) Predicate { return Predicate{kind: predicateOutsideRange, max: &v} }

// OutsideRange 非 NULL 且小于 lower 或大于 upper，缺省的边界不参与比较
func OutsideRange(lower, upper *float64) Predicate {
	return Predicate{kind: predicateOutsideRange, min: lower, max: upper}
}

// NeedsColumn 谓词是否引用列
func (p Predicate) NeedsColumn() bool {
	return p.kind != predicateAll
}

// Projection 聚合投影
type Projection int

const (
	// ProjectValue 对列值聚合，忽略 NULL 与空字符串
	ProjectValue Projection = iota
	// ProjectLength 对文本长度聚合，忽略 NULL
	ProjectLength
)

// Aggregates 聚合结果，无数据时为 nil
type Aggregates struct {
	Min  *float64
	Max  *float64
	Mean *float64
}

// DataSource 只读数据源
type DataSource interface {
	// Ping 检查数据源是否可用
	Ping(ctx context.Context) error
	// Tables 返回目录中的表名
	Tables(ctx context.Context) ([]string, error)
	// Columns 按目录顺序返回列信息
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	// CountRows 统计满足谓词的行数，谓词为 All 时 column 可为空
	CountRows(ctx context.Context, table, column string, p Predicate) (int64, error)
	// CountDistinct 统计满足谓词的不同值个数
	CountDistinct(ctx context.Context, table, column string, p Predicate) (int64, error)
	Aggregate(ctx context.Context, table, column string, proj Projection) (Aggregates, error)
	// SquaredDeviation 返回 (x-mean)^2 的平均值，无数据时为 nil
	SquaredDeviation(ctx context.Context, table, column string, mean float64) (*float64, error)
	// NonEmptyValues 以文本形式返回非 NULL 非空值
	NonEmptyValues(ctx context.Context, table, column string) ([]string, error)
	// CountOrphans 统计 column 非 NULL 且在 refTable.refColumn 中找不到的行数
	CountOrphans(ctx context.Context, table, column, refTable, refColumn string) (int64, error)
}
