package service

import (
	"context"
	"path/filepath"
	"testing"

	"dataquality-service/service/config"
	"dataquality-service/service/data_quality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "quality.db")
	cfg.Database.LogLevel = "silent"
	cfg.Quality.RulesFile = "../configs/quality_rules.yaml"
	return cfg
}

func TestBootstrapSeedsRulesOnce(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	c, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, c.Engine)
	require.NotNil(t, c.Scheduler)

	rules, err := c.Rules.ListRules(ctx, data_quality.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, rules, 13)
	c.Close()

	// 再次启动不重复初始化规则
	c, err = Bootstrap(ctx, cfg)
	require.NoError(t, err)
	defer c.Close()

	rules, err = c.Rules.ListRules(ctx, data_quality.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, rules, 13)
}

func TestBootstrapRunsAgainstMissingTables(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quality.SchedulerEnabled = false
	ctx := context.Background()

	c, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Scheduler)

	// 被检查的业务表不存在时，每条规则记录为ERROR，批次本身成功
	report, err := c.Engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, report.TotalRules)
	assert.Equal(t, 13, report.Errored)

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBootstrapSkipsMissingRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quality.RulesFile = filepath.Join(t.TempDir(), "absent.yaml")

	c, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	rules, err := c.Rules.ListRules(context.Background(), data_quality.RuleFilter{})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestBootstrapRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quality.Schedule = "every hour"

	_, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}
