/*
 * @module service/data_quality/errors
 * @description 数据质量错误分类：配置错误（跳过规则）、执行错误（ERROR结果）、致命错误（中止本次执行）
 * @architecture 领域模型层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 检查器/数据源错误 -> 分类 -> 引擎决定跳过、记录ERROR或中止
 * @rules 致命错误出现时本次执行不写入任何结果
 * @dependencies database/sql, database/sql/driver
 * @refs service/data_quality/engine.go
 */

package data_quality

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	// ErrIdentifierNotAllowed 表名或列名不在数据源目录中
	ErrIdentifierNotAllowed = errors.New("标识符不在数据源目录中")
	// ErrSourceUnavailable 数据源不可用
	ErrSourceUnavailable = errors.New("数据源不可用")
	// ErrRuleNotFound 规则不存在
	ErrRuleNotFound = errors.New("质量规则不存在")
)

// ConfigurationError 规则类型未知或配置缺失，规则被跳过
type ConfigurationError struct {
	RuleID int64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("规则 %d 配置无效: %s", e.RuleID, e.Reason)
}

// ExecutionError 单条规则执行失败，转换为 ERROR 结果
type ExecutionError struct {
	RuleID int64
	Err    error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FatalError 规则存储或数据源整体不可用
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal 判断错误是否需要中止整批执行
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal) || errors.Is(err, ErrSourceUnavailable)
}

// isConnectionError 连接级错误视为数据源不可用
func isConnectionError(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}
