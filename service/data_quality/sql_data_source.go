/*
 * @module service/data_quality/sql_data_source
 * @description 基于GORM的数据源实现，表名列名先经目录白名单校验，再以引用标识符的形式进入查询
 * @architecture 适配器模式 - 将 DataSource 接口适配到 SQLite/PostgreSQL
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 标识符校验 -> 构建查询(clause.Table/clause.Column) -> 执行 -> 标量转换
 * @rules 标识符永不拼接进SQL文本；连接级错误上报为数据源不可用
 * @dependencies gorm.io/gorm, gorm.io/gorm/clause, github.com/spf13/cast
 * @refs service/data_quality/datasource.go
 */

package data_quality

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLDataSource 基于GORM的只读数据源
type SQLDataSource struct {
	db *gorm.DB
}

// NewSQLDataSource 创建SQL数据源
func NewSQLDataSource(db *gorm.DB) *SQLDataSource {
	return &SQLDataSource{db: db}
}

// Ping 检查连接
func (s *SQLDataSource) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &FatalError{Op: "获取数据库连接", Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &FatalError{Op: "检查数据源连接", Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}
	return nil
}

// Tables 返回目录中的表名
func (s *SQLDataSource) Tables(ctx context.Context) ([]string, error) {
	tables, err := s.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, s.wrap("读取表目录", err)
	}
	return tables, nil
}

// Columns 按目录顺序返回列信息
func (s *SQLDataSource) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := s.checkTable(ctx, table); err != nil {
		return nil, err
	}
	return s.columns(ctx, table)
}

func (s *SQLDataSource) columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	columnTypes, err := s.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, s.wrap(fmt.Sprintf("读取表 %s 的列目录", table), err)
	}

	columns := make([]ColumnInfo, 0, len(columnTypes))
	for _, ct := range columnTypes {
		declared := ct.DatabaseTypeName()
		if full, ok := ct.ColumnType(); ok && full != "" {
			declared = full
		}
		columns = append(columns, ColumnInfo{
			Name:         ct.Name(),
			DeclaredType: declared,
			Class:        ClassifyType(declared),
		})
	}
	return columns, nil
}

// CountRows 统计满足谓词的行数
func (s *SQLDataSource) CountRows(ctx context.Context, table, column string, p Predicate) (int64, error) {
	if p.NeedsColumn() {
		if err := s.checkColumn(ctx, table, column); err != nil {
			return 0, err
		}
	} else if err := s.checkTable(ctx, table); err != nil {
		return 0, err
	}

	query := applyPredicate(s.table(ctx, table), column, p)
	return s.scanCount(query.Select("COUNT(*)"), fmt.Sprintf("统计表 %s 行数", table))
}

// CountDistinct 统计满足谓词的不同值个数
func (s *SQLDataSource) CountDistinct(ctx context.Context, table, column string, p Predicate) (int64, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return 0, err
	}

	col := clause.Column{Name: column}
	query := applyPredicate(s.table(ctx, table), column, p)
	return s.scanCount(query.Select("COUNT(DISTINCT ?)", col), fmt.Sprintf("统计 %s.%s 不同值", table, column))
}

// Aggregate 计算最小值、最大值和平均值
// 数值投影统一转换为 DOUBLE PRECISION，与 SquaredDeviation 使用同一口径；
// SQLite 数值列中混入的文本值按转换结果 (通常为 0) 参与统计，不会使整张表画像失败
func (s *SQLDataSource) Aggregate(ctx context.Context, table, column string, proj Projection) (Aggregates, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return Aggregates{}, err
	}

	col := clause.Column{Name: column}
	expr := numericExpr(col)
	filter := NotNullOrEmpty()
	if proj == ProjectLength {
		expr = clause.Expr{SQL: "LENGTH(CAST(? AS TEXT))", Vars: []interface{}{col}}
		filter = NotNull()
	}

	query := applyPredicate(s.table(ctx, table), column, filter).
		Select("MIN(?), MAX(?), AVG(?)", expr, expr, expr)

	var minRaw, maxRaw, avgRaw interface{}
	if err := query.Row().Scan(&minRaw, &maxRaw, &avgRaw); err != nil {
		return Aggregates{}, s.wrap(fmt.Sprintf("聚合 %s.%s", table, column), err)
	}

	var agg Aggregates
	var err error
	if agg.Min, err = toFloatPtr(minRaw); err != nil {
		return Aggregates{}, fmt.Errorf("转换 %s.%s 最小值失败: %w", table, column, err)
	}
	if agg.Max, err = toFloatPtr(maxRaw); err != nil {
		return Aggregates{}, fmt.Errorf("转换 %s.%s 最大值失败: %w", table, column, err)
	}
	if agg.Mean, err = toFloatPtr(avgRaw); err != nil {
		return Aggregates{}, fmt.Errorf("转换 %s.%s 平均值失败: %w", table, column, err)
	}
	return agg, nil
}

// SquaredDeviation 计算 (x-mean)^2 的平均值
func (s *SQLDataSource) SquaredDeviation(ctx context.Context, table, column string, mean float64) (*float64, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return nil, err
	}

	col := clause.Column{Name: column}
	query := applyPredicate(s.table(ctx, table), column, NotNullOrEmpty()).
		Select("AVG((? - ?) * (? - ?))", numericExpr(col), mean, numericExpr(col), mean)

	var raw interface{}
	if err := query.Row().Scan(&raw); err != nil {
		return nil, s.wrap(fmt.Sprintf("计算 %s.%s 方差", table, column), err)
	}
	return toFloatPtr(raw)
}

// NonEmptyValues 返回非 NULL 非空值的文本形式
func (s *SQLDataSource) NonEmptyValues(ctx context.Context, table, column string) ([]string, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return nil, err
	}

	col := clause.Column{Name: column}
	rows, err := applyPredicate(s.table(ctx, table), column, NotNullOrEmpty()).
		Select("CAST(? AS TEXT)", col).Rows()
	if err != nil {
		return nil, s.wrap(fmt.Sprintf("读取 %s.%s 的值", table, column), err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, s.wrap(fmt.Sprintf("扫描 %s.%s 的值", table, column), err)
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(fmt.Sprintf("遍历 %s.%s 的值", table, column), err)
	}
	return values, nil
}

// CountOrphans 左反连接统计找不到引用的行数
func (s *SQLDataSource) CountOrphans(ctx context.Context, table, column, refTable, refColumn string) (int64, error) {
	if err := s.checkColumn(ctx, table, column); err != nil {
		return 0, err
	}
	if err := s.checkColumn(ctx, refTable, refColumn); err != nil {
		return 0, err
	}

	src := clause.Column{Table: "t", Name: column}
	ref := clause.Column{Table: "r", Name: refColumn}
	query := s.db.WithContext(ctx).
		Table("? AS t", clause.Table{Name: table}).
		Joins("LEFT JOIN ? AS r ON ? = ?", clause.Table{Name: refTable}, src, ref).
		Where("? IS NOT NULL AND ? IS NULL", src, ref).
		Select("COUNT(*)")
	return s.scanCount(query, fmt.Sprintf("统计 %s.%s 孤立记录", table, column))
}

// checkTable 表名必须出现在目录中
func (s *SQLDataSource) checkTable(ctx context.Context, table string) error {
	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("%w: 表 %q", ErrIdentifierNotAllowed, table)
}

// checkColumn 表名和列名都必须出现在目录中
func (s *SQLDataSource) checkColumn(ctx context.Context, table, column string) error {
	if err := s.checkTable(ctx, table); err != nil {
		return err
	}
	columns, err := s.columns(ctx, table)
	if err != nil {
		return err
	}
	for _, c := range columns {
		if c.Name == column {
			return nil
		}
	}
	return fmt.Errorf("%w: 列 %q.%q", ErrIdentifierNotAllowed, table, column)
}

// table 以引用标识符的形式指定查询表
func (s *SQLDataSource) table(ctx context.Context, name string) *gorm.DB {
	return s.db.WithContext(ctx).Table("?", clause.Table{Name: name})
}

func (s *SQLDataSource) scanCount(query *gorm.DB, op string) (int64, error) {
	var n int64
	if err := query.Row().Scan(&n); err != nil {
		return 0, s.wrap(op, err)
	}
	return n, nil
}

// wrap 连接级错误升级为致命错误
func (s *SQLDataSource) wrap(op string, err error) error {
	if isConnectionError(err) {
		return &FatalError{Op: op, Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}
	return fmt.Errorf("%s失败: %w", op, err)
}

// numericExpr 数值投影
func numericExpr(col clause.Column) clause.Expr {
	return clause.Expr{SQL: "CAST(? AS DOUBLE PRECISION)", Vars: []interface{}{col}}
}

// applyPredicate 将谓词转换为 WHERE 条件
func applyPredicate(query *gorm.DB, column string, p Predicate) *gorm.DB {
	col := clause.Column{Name: column}
	switch p.kind {
	case predicateNullOrEmpty:
		return query.Where("(? IS NULL OR CAST(? AS TEXT) = '')", col, col)
	case predicateNotNull:
		return query.Where("? IS NOT NULL", col)
	case predicateNotNullOrEmpty:
		return query.Where("? IS NOT NULL AND CAST(? AS TEXT) <> ''", col, col)
	case predicateOutsideRange:
		query = query.Where("? IS NOT NULL", col)
		switch {
		case p.min != nil && p.max != nil:
			return query.Where("(? < ? OR ? > ?)", col, *p.min, col, *p.max)
		case p.min != nil:
			return query.Where("? < ?", col, *p.min)
		case p.max != nil:
			return query.Where("? > ?", col, *p.max)
		default:
			return query.Where("1 = 0")
		}
	}
	return query
}

func toFloatPtr(raw interface{}) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
