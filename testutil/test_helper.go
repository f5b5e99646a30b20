/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性；每个测试使用独立的数据库文件
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"dataquality-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
// 使用临时目录下的文件库，连接池中的多个连接看到同一份数据
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quality_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect test database")

	// 自动迁移服务自身的模型
	err = db.AutoMigrate(
		&models.QualityRule{},
		&models.QualityResult{},
	)
	require.NoError(t, err, "failed to migrate test database")

	tdb := &TestDB{DB: db}
	t.Cleanup(tdb.Close)
	return tdb
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	for _, table := range []string{"quality_results", "quality_rules"} {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	t  testing.TB
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(t testing.TB, db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{t: t, DB: db}
}

// Exec 执行建表或写入语句
func (f *TestDataFactory) Exec(sql string, args ...interface{}) {
	f.t.Helper()
	require.NoError(f.t, f.DB.Exec(sql, args...).Error, "exec %q", sql)
}

// CreateSampleSchema 创建被监控的示例业务表（customers/products/orders）
func (f *TestDataFactory) CreateSampleSchema() {
	f.t.Helper()
	f.Exec(`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		name TEXT,
		email TEXT,
		phone TEXT,
		age INTEGER,
		country TEXT,
		created_date DATE
	)`)
	f.Exec(`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		name TEXT,
		category TEXT,
		price DECIMAL(10,2),
		stock INTEGER,
		supplier_id INTEGER
	)`)
	f.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER,
		product_id INTEGER,
		quantity INTEGER,
		order_date DATE,
		total_amount DECIMAL(10,2)
	)`)
}

// CreateValuesTable 创建单列表 name(v <declaredType>) 并写入给定值，nil 写入 NULL
func (f *TestDataFactory) CreateValuesTable(name, declaredType string, values ...interface{}) {
	f.t.Helper()
	f.Exec(fmt.Sprintf("CREATE TABLE %s (id INTEGER PRIMARY KEY, v %s)", name, declaredType))
	for _, v := range values {
		f.Exec(fmt.Sprintf("INSERT INTO %s (v) VALUES (?)", name), v)
	}
}

// QualityRuleOption 质量规则选项函数类型
type QualityRuleOption func(*models.QualityRule)

// CreateQualityRule 创建测试质量规则
func (f *TestDataFactory) CreateQualityRule(table, column, ruleType string, opts ...QualityRuleOption) *models.QualityRule {
	f.t.Helper()
	rule := &models.QualityRule{
		TargetTable:    table,
		TargetColumn:   column,
		RuleType:       ruleType,
		RuleConfig:     models.JSONB{},
		ThresholdValue: 5.0,
		IsActive:       true,
		CreatedBy:      "test",
		UpdatedBy:      "test",
	}

	// 应用选项
	for _, opt := range opts {
		opt(rule)
	}

	require.NoError(f.t, f.DB.Create(rule).Error, "failed to create test quality rule")
	return rule
}

// WithRuleConfig 设置规则配置
func WithRuleConfig(cfg map[string]interface{}) QualityRuleOption {
	return func(r *models.QualityRule) {
		r.RuleConfig = models.JSONB(cfg)
	}
}

// WithThreshold 设置阈值
func WithThreshold(threshold float64) QualityRuleOption {
	return func(r *models.QualityRule) {
		r.ThresholdValue = threshold
	}
}

// WithInactive 设置为停用
func WithInactive() QualityRuleOption {
	return func(r *models.QualityRule) {
		r.IsActive = false
	}
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// DecodeEnvelope 解析统一响应结构
func (h *HTTPTestHelper) DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) (int, string) {
	t.Helper()
	var envelope struct {
		Status int             `json:"status"`
		Msg    string          `json:"msg"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "body: %s", w.Body.String())
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Status, envelope.Msg
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
