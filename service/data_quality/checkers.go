/*
 * @module service/data_quality/checkers
 * @description 五种质量检查器：空值、格式、范围、唯一性、外键，均为无状态策略
 * @architecture 策略模式 - 按规则类型分派检查器
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 规则 -> 计数查询 -> 违规比例 -> 与阈值比较 -> PASS/FAIL
 * @rules 违规比例落在 [0,100]；比例不大于阈值即通过；分母为0时视为通过
 * @dependencies regexp, regexp/syntax
 * @refs service/data_quality/engine.go, service/data_quality/datasource.go
 */

package data_quality

import (
	"context"
	"fmt"
	"regexp"
	"regexp/syntax"
	"unicode/utf8"
)

// Checker 质量检查器
type Checker interface {
	Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error)
}

// DefaultCheckers 返回规则类型到检查器的默认映射
func DefaultCheckers() map[RuleKind]Checker {
	return map[RuleKind]Checker{
		KindNullCheck:       NewNullChecker(),
		KindFormatCheck:     NewFormatChecker(),
		KindRangeCheck:      NewRangeChecker(),
		KindUniquenessCheck: NewUniquenessChecker(),
		KindForeignKeyCheck: NewForeignKeyChecker(),
	}
}

// NullChecker 空值检查器，空字符串按空值计
type NullChecker struct{}

// NewNullChecker 创建空值检查器
func NewNullChecker() *NullChecker {
	return &NullChecker{}
}

// Check 执行空值检查
func (c *NullChecker) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	total, err := source.CountRows(ctx, rule.Table, rule.Column, All())
	if err != nil {
		return nil, err
	}
	nulls, err := source.CountRows(ctx, rule.Table, rule.Column, NullOrEmpty())
	if err != nil {
		return nil, err
	}
	return measure(nulls, total, rule.Threshold, "null values"), nil
}

// FormatChecker 格式检查器
type FormatChecker struct{}

// NewFormatChecker 创建格式检查器
func NewFormatChecker() *FormatChecker {
	return &FormatChecker{}
}

// Check 执行格式检查，只对非空值做匹配
func (c *FormatChecker) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	cfg, ok := rule.Config.(FormatConfig)
	if !ok {
		return nil, &ConfigurationError{RuleID: rule.ID, Reason: "格式检查缺少 pattern 配置"}
	}

	matcher, err := compileFormatMatcher(cfg.Pattern)
	if err != nil {
		return nil, &ExecutionError{RuleID: rule.ID, Err: fmt.Errorf("正则表达式 %q 无效: %w", cfg.Pattern, err)}
	}

	values, err := source.NonEmptyValues(ctx, rule.Table, rule.Column)
	if err != nil {
		return nil, err
	}

	var invalid int64
	for i, v := range values {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !matcher.Match(v) {
			invalid++
		}
	}
	return measure(invalid, int64(len(values)), rule.Threshold, "invalid format"), nil
}

// formatMatcher 只锚定开头的格式匹配：值的某个前缀能被模式完整匹配即视为合法。
// 因此能匹配空串的模式 (如 ^[0-9]*$) 通过空前缀接受任意值。
type formatMatcher struct {
	re *regexp.Regexp
	// scanPrefixes 为 true 时逐个前缀重试，耗时与值长度的平方相关
	scanPrefixes bool
}

// compileFormatMatcher 编译格式匹配器。
// 模式末尾的 $ (\z) 去掉后只需一次 ^(?:...) 匹配；
// 含 \b、\B、多行 $ 或非末尾的 $ 时结果依赖前缀之后的字符，退回逐前缀匹配
func compileFormatMatcher(pattern string) (*formatMatcher, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	anchored, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}

	parsed, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, err
	}
	if containsOp(parsed, syntax.OpWordBoundary, syntax.OpNoWordBoundary, syntax.OpEndLine) {
		return &formatMatcher{re: anchored, scanPrefixes: true}, nil
	}
	stripTrailingEndText(parsed)
	if containsOp(parsed, syntax.OpEndText) {
		return &formatMatcher{re: anchored, scanPrefixes: true}, nil
	}

	prefix, err := regexp.Compile("^(?:" + parsed.String() + ")")
	if err != nil {
		return nil, err
	}
	return &formatMatcher{re: prefix}, nil
}

// Match 判断值是否合法
func (m *formatMatcher) Match(value string) bool {
	if m.re.MatchString(value) {
		return true
	}
	if !m.scanPrefixes {
		return false
	}
	for end := len(value); end > 0; {
		_, size := utf8.DecodeLastRuneInString(value[:end])
		end -= size
		if m.re.MatchString(value[:end]) {
			return true
		}
	}
	return false
}

// stripTrailingEndText 将处于匹配末尾位置的 $ 替换为空匹配
func stripTrailingEndText(re *syntax.Regexp) {
	switch re.Op {
	case syntax.OpEndText:
		re.Op = syntax.OpEmptyMatch
	case syntax.OpConcat:
		if n := len(re.Sub); n > 0 {
			stripTrailingEndText(re.Sub[n-1])
		}
	case syntax.OpAlternate:
		for _, sub := range re.Sub {
			stripTrailingEndText(sub)
		}
	case syntax.OpCapture:
		stripTrailingEndText(re.Sub[0])
	}
}

func containsOp(re *syntax.Regexp, ops ...syntax.Op) bool {
	for _, op := range ops {
		if re.Op == op {
			return true
		}
	}
	for _, sub := range re.Sub {
		if containsOp(sub, ops...) {
			return true
		}
	}
	return false
}

// RangeChecker 范围检查器
type RangeChecker struct{}

// NewRangeChecker 创建范围检查器
func NewRangeChecker() *RangeChecker {
	return &RangeChecker{}
}

// Check 执行范围检查
func (c *RangeChecker) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	cfg, ok := rule.Config.(RangeConfig)
	if !ok {
		return nil, &ConfigurationError{RuleID: rule.ID, Reason: "范围检查缺少配置"}
	}
	if cfg.Min == nil && cfg.Max == nil {
		return &Measurement{Status: StatusPass, Details: "No range specified"}, nil
	}

	total, err := source.CountRows(ctx, rule.Table, rule.Column, NotNull())
	if err != nil {
		return nil, err
	}
	outside, err := source.CountRows(ctx, rule.Table, rule.Column, OutsideRange(cfg.Min, cfg.Max))
	if err != nil {
		return nil, err
	}
	return measure(outside, total, rule.Threshold, "out of range"), nil
}

// UniquenessChecker 唯一性检查器
type UniquenessChecker struct{}

// NewUniquenessChecker 创建唯一性检查器
func NewUniquenessChecker() *UniquenessChecker {
	return &UniquenessChecker{}
}

// Check 重复数 = 非空值数 - 不同非空值数
func (c *UniquenessChecker) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	total, err := source.CountRows(ctx, rule.Table, rule.Column, NotNull())
	if err != nil {
		return nil, err
	}
	distinct, err := source.CountDistinct(ctx, rule.Table, rule.Column, NotNull())
	if err != nil {
		return nil, err
	}
	return measure(total-distinct, total, rule.Threshold, "duplicates"), nil
}

// ForeignKeyChecker 外键检查器
type ForeignKeyChecker struct{}

// NewForeignKeyChecker 创建外键检查器
func NewForeignKeyChecker() *ForeignKeyChecker {
	return &ForeignKeyChecker{}
}

// Check 统计在引用表中找不到的非空外键值
func (c *ForeignKeyChecker) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	cfg, ok := rule.Config.(ForeignKeyConfig)
	if !ok {
		return nil, &ConfigurationError{RuleID: rule.ID, Reason: "外键检查缺少引用配置"}
	}

	total, err := source.CountRows(ctx, rule.Table, rule.Column, NotNull())
	if err != nil {
		return nil, err
	}
	orphans, err := source.CountOrphans(ctx, rule.Table, rule.Column, cfg.ReferenceTable, cfg.ReferenceColumn)
	if err != nil {
		return nil, err
	}
	return measure(orphans, total, rule.Threshold, "orphan records"), nil
}

// measure 计算违规比例并与阈值比较
func measure(violations, total int64, threshold float64, description string) *Measurement {
	metric := Percentage(violations, total)
	status := StatusPass
	if metric > threshold {
		status = StatusFail
	}
	return &Measurement{
		Violations:  violations,
		Total:       total,
		MetricValue: metric,
		Status:      status,
		Details:     fmt.Sprintf("%d/%d %s (%.2f%%)", violations, total, description, metric),
	}
}

// Percentage 计算百分比，分母为0时返回0，结果限定在 [0,100]
func Percentage(part, total int64) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	p := float64(part) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}
