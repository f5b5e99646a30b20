/*
 * @module service/data_quality/rule_loader
 * @description 从YAML文件加载初始质量规则，并写入规则存储中尚不存在的规则
 * @architecture 配置驱动 - 规则初始化
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 读取YAML -> 解析并校验配置 -> 按 表/列/类型 去重 -> 写入规则存储
 * @rules 已存在的相同规则不覆盖；任一规则配置无效时整个文件加载失败
 * @dependencies gopkg.in/yaml.v3
 * @refs service/data_quality/rule_store.go, configs/quality_rules.yaml
 */

package data_quality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"dataquality-service/service/models"

	"gopkg.in/yaml.v3"
)

// RuleSpec YAML中的单条规则
type RuleSpec struct {
	Table       string                 `yaml:"table"`
	Column      string                 `yaml:"column"`
	Kind        RuleKind               `yaml:"kind"`
	Config      map[string]interface{} `yaml:"config"`
	Threshold   float64                `yaml:"threshold"`
	Active      *bool                  `yaml:"active"`
	Description string                 `yaml:"description"`
}

// RuleBundle 规则文件
type RuleBundle struct {
	Rules []RuleSpec `yaml:"rules"`
}

// SeedStore 规则初始化所需的存储能力
type SeedStore interface {
	HasRule(ctx context.Context, table, column string, kind RuleKind) (bool, error)
	CreateRule(ctx context.Context, rule *Rule, description, operator string) (*models.QualityRule, error)
}

// ParseRuleBundle 解析规则文件内容
func ParseRuleBundle(r io.Reader) ([]*Rule, []string, error) {
	var bundle RuleBundle
	if err := yaml.NewDecoder(r).Decode(&bundle); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("解析规则文件失败: %w", err)
	}

	rules := make([]*Rule, 0, len(bundle.Rules))
	descriptions := make([]string, 0, len(bundle.Rules))
	for i, entry := range bundle.Rules {
		cfg, err := DecodeRuleConfig(entry.Kind, entry.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("第 %d 条规则 (%s.%s) 配置无效: %w", i+1, entry.Table, entry.Column, err)
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		rule := &Rule{
			Table:     entry.Table,
			Column:    entry.Column,
			Kind:      entry.Kind,
			Config:    cfg,
			Threshold: entry.Threshold,
			Active:    active,
		}
		if err := rule.Validate(); err != nil {
			return nil, nil, fmt.Errorf("第 %d 条规则 (%s.%s) 无效: %w", i+1, entry.Table, entry.Column, err)
		}
		rules = append(rules, rule)
		descriptions = append(descriptions, entry.Description)
	}
	return rules, descriptions, nil
}

// SeedRulesFromFile 加载规则文件并写入不存在的规则，返回新写入条数
func SeedRulesFromFile(ctx context.Context, store SeedStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开规则文件失败: %w", err)
	}
	defer f.Close()

	rules, descriptions, err := ParseRuleBundle(f)
	if err != nil {
		return 0, err
	}
	return SeedRules(ctx, store, rules, descriptions)
}

// SeedRules 写入不存在的规则
func SeedRules(ctx context.Context, store SeedStore, rules []*Rule, descriptions []string) (int, error) {
	inserted := 0
	for i, rule := range rules {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		exists, err := store.HasRule(ctx, rule.Table, rule.Column, rule.Kind)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		description := ""
		if i < len(descriptions) {
			description = descriptions[i]
		}
		if _, err := store.CreateRule(ctx, rule, description, "system"); err != nil {
			return inserted, err
		}
		inserted++
	}
	slog.Info("质量规则初始化完成", "total", len(rules), "inserted", inserted)
	return inserted, nil
}
