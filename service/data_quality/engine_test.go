/*
 * @module service/data_quality/engine_test
 * @description 规则引擎测试：结果顺序、故障隔离、超时、跳过无效配置、致命错误不落库
 * @architecture 测试层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 构造规则与替身检查器 -> RunAll/Run -> 断言结果与写入记录
 * @rules 并发执行不影响输出顺序
 * @dependencies github.com/stretchr/testify
 * @refs service/data_quality/engine.go
 */

package data_quality

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRuleStore 规则存储替身
type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) ActiveRules(ctx context.Context) (*RuleSet, error) {
	args := m.Called(ctx)
	if set, ok := args.Get(0).(*RuleSet); ok {
		return set, args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingSink 记录写入顺序的结果日志
type recordingSink struct {
	mu      sync.Mutex
	results []*Result
	err     error
}

func (s *recordingSink) Append(ctx context.Context, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingSink) ruleIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.results))
	for _, r := range s.results {
		ids = append(ids, r.RuleID)
	}
	return ids
}

type checkerFunc func(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error)

func (f checkerFunc) Check(ctx context.Context, source DataSource, rule *Rule) (*Measurement, error) {
	return f(ctx, source, rule)
}

func passingMeasurement() *Measurement {
	return measure(0, 10, 5, "null values")
}

func nullRule(id int64) *Rule {
	return &Rule{ID: id, Table: "people", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 5, Active: true}
}

func TestEngineRunAllOrdersResultsByRuleID(t *testing.T) {
	source, _ := newTestSource(t)
	sink := &recordingSink{}

	// 规则ID越小耗时越长，完成顺序与ID顺序相反
	slow := checkerFunc(func(ctx context.Context, _ DataSource, rule *Rule) (*Measurement, error) {
		time.Sleep(time.Duration(4-rule.ID) * 20 * time.Millisecond)
		return passingMeasurement(), nil
	})
	engine := NewEngine(nil, source, sink, WithWorkers(3), WithChecker(KindNullCheck, slow))

	results, err := engine.RunAll(context.Background(), []*Rule{nullRule(3), nullRule(1), nullRule(2)})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{results[0].RuleID, results[1].RuleID, results[2].RuleID})
	assert.Equal(t, []int64{1, 2, 3}, sink.ruleIDs())
	for i, r := range results {
		assert.Equal(t, i+1, r.Sequence)
		assert.Equal(t, results[0].RunID, r.RunID)
	}
}

func TestEngineIsolatesCheckerFailures(t *testing.T) {
	source, factory := newTestSource(t)
	factory.CreateValuesTable("people", "TEXT", "a", "b", nil)
	sink := &recordingSink{}
	engine := NewEngine(nil, source, sink)

	rules := []*Rule{
		nullRule(1),
		{ID: 2, Table: "missing_table", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 5, Active: true},
		{ID: 3, Table: "people", Column: "v", Kind: KindFormatCheck, Config: FormatConfig{Pattern: "(["}, Threshold: 5, Active: true},
		{ID: 4, Table: "people", Column: "v", Kind: KindUniquenessCheck, Config: UniquenessConfig{}, Threshold: 5, Active: true},
	}
	results, err := engine.RunAll(context.Background(), rules)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, StatusFail, results[0].Status)
	assert.InDelta(t, 33.333, results[0].MetricValue, 0.001)

	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, 0.0, results[1].MetricValue)
	assert.Contains(t, results[1].Details, "missing_table")

	assert.Equal(t, StatusError, results[2].Status)
	assert.Contains(t, results[2].Details, "正则表达式")

	assert.Equal(t, StatusPass, results[3].Status)
	assert.Len(t, sink.results, 4)
}

func TestEngineCheckTimeout(t *testing.T) {
	source, _ := newTestSource(t)
	sink := &recordingSink{}

	release := make(chan struct{})
	defer close(release)
	// 不响应取消的检查器
	blocking := checkerFunc(func(ctx context.Context, _ DataSource, rule *Rule) (*Measurement, error) {
		if rule.ID == 1 {
			<-release
		}
		return passingMeasurement(), nil
	})
	engine := NewEngine(nil, source, sink, WithCheckTimeout(50*time.Millisecond), WithChecker(KindNullCheck, blocking))

	start := time.Now()
	results, err := engine.RunAll(context.Background(), []*Rule{nullRule(1), nullRule(2)})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, results, 2)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, "check timed out after 50ms", results[0].Details)
	assert.Equal(t, StatusPass, results[1].Status)
}

func TestEngineSkipsMisconfiguredRules(t *testing.T) {
	source, _ := newTestSource(t)
	sink := &recordingSink{}
	engine := NewEngine(nil, source, sink, WithChecker(KindNullCheck, checkerFunc(
		func(ctx context.Context, _ DataSource, _ *Rule) (*Measurement, error) {
			return passingMeasurement(), nil
		})))

	rules := []*Rule{
		nullRule(1),
		{ID: 2, Table: "people", Column: "v", Kind: RuleKind("pattern_check"), Config: NullConfig{}, Threshold: 5, Active: true},
		{ID: 3, Table: "people", Column: "v", Kind: KindFormatCheck, Threshold: 5, Active: true},
		{ID: 4, Table: "people", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 5, Active: false},
		nullRule(5),
	}
	results, err := engine.RunAll(context.Background(), rules)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 5}, sink.ruleIDs())
	require.Len(t, results, 2)

	_, err = engine.Evaluate(context.Background(), rules[1])
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, int64(2), cfgErr.RuleID)
}

func TestEngineFatalErrorPersistsNothing(t *testing.T) {
	t.Run("checker reports source unavailable", func(t *testing.T) {
		source, _ := newTestSource(t)
		sink := &recordingSink{}
		engine := NewEngine(nil, source, sink, WithChecker(KindNullCheck, checkerFunc(
			func(ctx context.Context, _ DataSource, rule *Rule) (*Measurement, error) {
				if rule.ID == 2 {
					return nil, &FatalError{Op: "统计行数", Err: ErrSourceUnavailable}
				}
				return passingMeasurement(), nil
			})))

		results, err := engine.RunAll(context.Background(), []*Rule{nullRule(1), nullRule(2), nullRule(3)})
		require.Error(t, err)
		assert.Nil(t, results)
		assert.True(t, IsFatal(err))
		assert.Empty(t, sink.results)
	})

	t.Run("ping fails", func(t *testing.T) {
		tdb := testutil.NewTestDB(t)
		source := NewSQLDataSource(tdb.DB)
		sqlDB, err := tdb.DB.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		sink := &recordingSink{}
		engine := NewEngine(nil, source, sink)
		_, err = engine.RunAll(context.Background(), []*Rule{nullRule(1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnavailable)
		assert.Empty(t, sink.results)
	})

	t.Run("parent context cancelled", func(t *testing.T) {
		source, _ := newTestSource(t)
		sink := &recordingSink{}
		ctx, cancel := context.WithCancel(context.Background())
		engine := NewEngine(nil, source, sink, WithChecker(KindNullCheck, checkerFunc(
			func(checkCtx context.Context, _ DataSource, rule *Rule) (*Measurement, error) {
				if rule.ID == 1 {
					cancel()
				}
				<-checkCtx.Done()
				return nil, checkCtx.Err()
			})))

		_, err := engine.RunAll(ctx, []*Rule{nullRule(1), nullRule(2)})
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.Empty(t, sink.results)
	})

	t.Run("rule store unavailable", func(t *testing.T) {
		source, _ := newTestSource(t)
		store := new(MockRuleStore)
		store.On("ActiveRules", mock.Anything).Return(nil, fmt.Errorf("connection refused"))
		sink := &recordingSink{}

		report, err := NewEngine(store, source, sink).Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, report)
		var fatal *FatalError
		assert.True(t, errors.As(err, &fatal))
		assert.Empty(t, sink.results)
		store.AssertExpectations(t)
	})
}

func TestEngineRunReport(t *testing.T) {
	source, factory := newTestSource(t)
	factory.CreateValuesTable("people", "TEXT", "a", "b", "c", "d", nil)

	store := new(MockRuleStore)
	store.On("ActiveRules", mock.Anything).Return(&RuleSet{
		Rules: []*Rule{
			{ID: 2, Table: "people", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 50, Active: true},
			{ID: 1, Table: "people", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 5, Active: true},
			{ID: 3, Table: "nowhere", Column: "v", Kind: KindNullCheck, Config: NullConfig{}, Threshold: 5, Active: true},
		},
		Invalid: []*ConfigurationError{{RuleID: 7, Reason: "格式检查缺少 pattern 配置"}},
	}, nil)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sink := &recordingSink{}
	engine := NewEngine(store, source, sink, WithMetrics(metrics))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.TotalRules)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, []int64{7}, report.SkippedRules)
	assert.Equal(t, []int64{1, 2, 3}, sink.ruleIDs())
	for _, r := range report.Results {
		assert.Equal(t, report.RunID, r.RunID)
	}

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.checksTotal.WithLabelValues(string(KindNullCheck), string(StatusFail))))
	assert.Equal(t, 20.0, promtestutil.ToFloat64(metrics.metricValue.WithLabelValues("1", "people", "v")))
}

func TestEngineWithGormStores(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	factory := testutil.NewTestDataFactory(t, tdb.DB)
	factory.CreateSampleSchema()
	for i, age := range []interface{}{25, 150, -5, 40} {
		factory.Exec("INSERT INTO customers (id, name, email, age) VALUES (?, ?, ?, ?)", i+1, fmt.Sprintf("c%d", i), "a@b.co", age)
	}

	factory.CreateQualityRule("customers", "age", string(KindRangeCheck),
		testutil.WithRuleConfig(map[string]interface{}{"min": 0, "max": 120}))
	factory.CreateQualityRule("customers", "email", string(KindUniquenessCheck), testutil.WithThreshold(1))
	// pattern 缺失，加载时跳过
	factory.CreateQualityRule("customers", "email", string(KindFormatCheck))
	factory.CreateQualityRule("customers", "name", string(KindNullCheck), testutil.WithInactive())

	sink := NewGormResultSink(tdb.DB)
	engine := NewEngine(NewGormRuleStore(tdb.DB), NewSQLDataSource(tdb.DB), sink, WithWorkers(2))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalRules)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.SkippedRules, 1)

	var rows []models.QualityResult
	require.NoError(t, tdb.DB.Order("sequence ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "2/4 out of range (50.00%)", rows[0].Details)
	assert.Equal(t, "3/4 duplicates (75.00%)", rows[1].Details)
	assert.Less(t, rows[0].RuleID, rows[1].RuleID)
	assert.Equal(t, report.RunID, rows[0].RunID)
	assert.Equal(t, 1, rows[0].Sequence)

	listed, err := sink.ListResults(context.Background(), ResultFilter{RunID: report.RunID})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, rows[0].RuleID, listed[0].RuleID)
}
