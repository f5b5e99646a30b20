/*
 * @module api/controllers/quality_controller_test
 * @description 数据质量控制器测试，基于SQLite测试库走完整的路由、服务与存储
 * @architecture 测试层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 测试准备 -> 请求构建 -> 响应验证
 * @rules 确保数据质量API的正确性和错误码映射
 * @dependencies testing, net/http/httptest, stretchr/testify, go-chi/chi
 */

package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qualityFixture struct {
	router  *chi.Mux
	factory *testutil.TestDataFactory
	helper  *testutil.HTTPTestHelper
}

func newQualityFixture(t *testing.T) *qualityFixture {
	tdb := testutil.NewTestDB(t)
	factory := testutil.NewTestDataFactory(t, tdb.DB)

	source := data_quality.NewSQLDataSource(tdb.DB)
	rules := data_quality.NewGormRuleStore(tdb.DB)
	results := data_quality.NewGormResultSink(tdb.DB)
	engine := data_quality.NewEngine(rules, source, results)
	qc := NewQualityController(engine, rules, results, data_quality.NewReportService(tdb.DB), data_quality.NewProfiler(source))

	r := chi.NewRouter()
	r.Route("/quality", func(r chi.Router) {
		r.Post("/run", qc.RunChecks)
		r.Get("/rules", qc.GetQualityRules)
		r.Post("/rules", qc.CreateQualityRule)
		r.Get("/rules/{id}", qc.GetQualityRule)
		r.Put("/rules/{id}", qc.UpdateQualityRule)
		r.Delete("/rules/{id}", qc.DeleteQualityRule)
		r.Get("/results", qc.GetQualityResults)
		r.Get("/summary", qc.GetQualitySummary)
		r.Get("/profile/{table}", qc.ProfileTable)
	})

	return &qualityFixture{router: r, factory: factory, helper: testutil.NewHTTPTestHelper()}
}

func (f *qualityFixture) do(t *testing.T, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, err := f.helper.CreateJSONRequest(method, url, body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestQualityRuleLifecycle(t *testing.T) {
	f := newQualityFixture(t)

	// 创建
	w := f.do(t, http.MethodPost, "/quality/rules", map[string]interface{}{
		"table_name":      "customers",
		"column_name":     "age",
		"rule_type":       "range_check",
		"rule_config":     map[string]interface{}{"min": 0, "max": 120},
		"threshold_value": 5,
		"description":     "年龄范围",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created models.QualityRule
	status, _ := f.helper.DecodeEnvelope(t, w, &created)
	assert.Equal(t, 0, status)
	assert.NotZero(t, created.RuleID)
	assert.True(t, created.IsActive)
	assert.Equal(t, "api", created.CreatedBy)

	// 部分更新，保留原配置
	w = f.do(t, http.MethodPut, "/quality/rules/1", map[string]interface{}{"threshold_value": 10, "is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.QualityRule
	f.helper.DecodeEnvelope(t, w, &updated)
	assert.Equal(t, 10.0, updated.ThresholdValue)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "年龄范围", updated.Description)
	assert.EqualValues(t, 120, updated.RuleConfig["max"])

	// 查询
	w = f.do(t, http.MethodGet, "/quality/rules?active=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.QualityRule
	f.helper.DecodeEnvelope(t, w, &list)
	assert.Len(t, list, 1)

	w = f.do(t, http.MethodGet, "/quality/rules?active=true", nil)
	list = nil
	f.helper.DecodeEnvelope(t, w, &list)
	assert.Empty(t, list)

	// 删除
	w = f.do(t, http.MethodDelete, "/quality/rules/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/quality/rules/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateQualityRuleValidation(t *testing.T) {
	f := newQualityFixture(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"format check without pattern", map[string]interface{}{
			"table_name": "customers", "column_name": "email", "rule_type": "format_check"}},
		{"unknown rule type", map[string]interface{}{
			"table_name": "customers", "column_name": "email", "rule_type": "regex_check"}},
		{"threshold above 100", map[string]interface{}{
			"table_name": "customers", "column_name": "email", "rule_type": "null_check", "threshold_value": 150}},
		{"missing column", map[string]interface{}{
			"table_name": "customers", "rule_type": "null_check"}},
		{"malformed body", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/quality/rules", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			status, _ := f.helper.DecodeEnvelope(t, w, nil)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestUpdateQualityRuleErrors(t *testing.T) {
	f := newQualityFixture(t)
	f.factory.CreateQualityRule("customers", "email", "format_check",
		testutil.WithRuleConfig(map[string]interface{}{"pattern": "^a"}))

	w := f.do(t, http.MethodPut, "/quality/rules/99", map[string]interface{}{"threshold_value": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPut, "/quality/rules/abc", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 修改类型但不提供新配置
	w = f.do(t, http.MethodPut, "/quality/rules/1", map[string]interface{}{"rule_type": "foreign_key_check"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 修改为不需要配置的类型
	w = f.do(t, http.MethodPut, "/quality/rules/1", map[string]interface{}{"rule_type": "null_check"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRunChecksAndQueryResults(t *testing.T) {
	f := newQualityFixture(t)
	f.factory.CreateSampleSchema()
	f.factory.Exec(`INSERT INTO customers (name, email, age) VALUES ('a', 'a@x.com', 30), (NULL, 'bad', 200)`)
	f.factory.CreateQualityRule("customers", "name", "null_check", testutil.WithThreshold(10))
	f.factory.CreateQualityRule("customers", "age", "range_check",
		testutil.WithRuleConfig(map[string]interface{}{"min": 0, "max": 120}), testutil.WithThreshold(60))
	f.factory.CreateQualityRule("missing_table", "id", "null_check")

	w := f.do(t, http.MethodPost, "/quality/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report data_quality.RunReport
	f.helper.DecodeEnvelope(t, w, &report)
	assert.Equal(t, 3, report.TotalRules)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Errored)

	w = f.do(t, http.MethodGet, "/quality/results?run_id="+report.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []data_quality.Result
	f.helper.DecodeEnvelope(t, w, &results)
	require.Len(t, results, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{results[0].RuleID, results[1].RuleID, results[2].RuleID})
	assert.Equal(t, data_quality.StatusFail, results[0].Status)
	assert.Equal(t, 50.0, results[0].MetricValue)

	w = f.do(t, http.MethodGet, "/quality/results?status=ERROR", nil)
	results = nil
	f.helper.DecodeEnvelope(t, w, &results)
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].RuleID)

	for _, bad := range []string{"status=BROKEN", "rule_id=x", "limit=-1"} {
		w = f.do(t, http.MethodGet, "/quality/results?"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	w = f.do(t, http.MethodGet, "/quality/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary data_quality.QualitySummary
	f.helper.DecodeEnvelope(t, w, &summary)
	assert.Len(t, summary.TableSummary, 2)
	assert.Len(t, summary.RecentFailures, 1)
}

func TestProfileTable(t *testing.T) {
	f := newQualityFixture(t)
	f.factory.CreateValuesTable("scores", "INTEGER", 1, 2, 3, nil)

	w := f.do(t, http.MethodGet, "/quality/profile/scores", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ProfileResponse
	f.helper.DecodeEnvelope(t, w, &resp)
	assert.Equal(t, "scores", resp.TableName)
	assert.False(t, resp.ProfiledAt.IsZero())
	require.Len(t, resp.Columns, 2)
	assert.Equal(t, "v", resp.Columns[1].Column)
	assert.Equal(t, int64(1), resp.Columns[1].NullCount)

	w = f.do(t, http.MethodGet, "/quality/profile/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingRunner 批次执行失败
type failingRunner struct{}

func (failingRunner) Run(context.Context) (*data_quality.RunReport, error) {
	return nil, &data_quality.FatalError{Op: "检查数据源连接", Err: data_quality.ErrSourceUnavailable}
}

func TestRunChecksFatalError(t *testing.T) {
	qc := NewQualityController(failingRunner{}, nil, nil, nil, nil)
	w := httptest.NewRecorder()
	qc.RunChecks(w, httptest.NewRequest(http.MethodPost, "/quality/run", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	status, msg := testutil.NewHTTPTestHelper().DecodeEnvelope(t, w, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, msg)
}

// stubPinger 固定的连接检查结果
type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthController(t *testing.T) {
	healthy := NewHealthController(stubPinger{})
	w := httptest.NewRecorder()
	healthy.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	down := NewHealthController(stubPinger{err: errors.New("connection refused")})
	w = httptest.NewRecorder()
	down.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	down.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
