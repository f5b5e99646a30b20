/*
 * @module service/notification/kafka_publisher
 * @description 检查结果通知，将未通过(FAIL)和执行出错(ERROR)的检查结果发布到Kafka
 * @architecture 装饰器模式 - 包装结果写入器，写入成功后再发布消息
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 结果写入 -> 状态判断 -> 序列化 -> 发送消息
 * @rules 只发布FAIL/ERROR结果；消息以规则ID为key；发布失败只记录日志，不影响结果写入
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/data_quality/engine.go, service/init.go
 */

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"dataquality-service/service/data_quality"

	"github.com/segmentio/kafka-go"
)

// MessageWriter Kafka消息写入接口，*kafka.Writer 实现该接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResultEvent 结果通知消息体
type ResultEvent struct {
	EventType string               `json:"event_type"`
	SentAt    time.Time            `json:"sent_at"`
	Result    *data_quality.Result `json:"result"`
}

const (
	EventCheckFailed  = "quality_check_failed"
	EventCheckErrored = "quality_check_errored"
)

// KafkaPublisher 结果写入装饰器
type KafkaPublisher struct {
	inner   data_quality.ResultSink
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter 创建指定topic的Kafka生产者
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher 创建结果通知装饰器
func NewKafkaPublisher(inner data_quality.ResultSink, writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		inner:   inner,
		writer:  writer,
		timeout: 5 * time.Second,
	}
}

// Append 写入结果，FAIL/ERROR结果在写入成功后发布
func (p *KafkaPublisher) Append(ctx context.Context, result *data_quality.Result) error {
	if err := p.inner.Append(ctx, result); err != nil {
		return err
	}

	eventType, ok := eventTypeFor(result.Status)
	if !ok {
		return nil
	}

	msg, err := buildMessage(eventType, result)
	if err != nil {
		slog.Error("序列化检查结果通知失败", "rule_id", result.RuleID, "error", err)
		return nil
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(pubCtx, msg); err != nil {
		slog.Error("发布检查结果通知失败",
			"rule_id", result.RuleID,
			"run_id", result.RunID,
			"status", result.Status,
			"error", err)
	}
	return nil
}

// Close 关闭Kafka生产者
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventTypeFor(status data_quality.Status) (string, bool) {
	switch status {
	case data_quality.StatusFail:
		return EventCheckFailed, true
	case data_quality.StatusError:
		return EventCheckErrored, true
	default:
		return "", false
	}
}

func buildMessage(eventType string, result *data_quality.Result) (kafka.Message, error) {
	now := time.Now().UTC()
	value, err := json.Marshal(ResultEvent{
		EventType: eventType,
		SentAt:    now,
		Result:    result,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化消息失败: %w", err)
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(result.RuleID, 10)),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "table_name", Value: []byte(result.Table)},
		},
	}, nil
}
