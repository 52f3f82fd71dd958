package alerter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dushixiang/httping/internal/config"
	"github.com/dushixiang/httping/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// webhookTimeout 单次 webhook 通知的超时时间
const webhookTimeout = 30 * time.Second

// Alerter 告警评估器：匹配触发条件，经过冷却检查后发送 webhook 通知
type Alerter struct {
	logger *zap.Logger
	alerts []config.Alert
	client *http.Client

	// 冷却帐本：(规则名:目标名) -> 上次发送时间
	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time
}

// NewAlerter 创建告警评估器
func NewAlerter(logger *zap.Logger, alerts []config.Alert) *Alerter {
	return &Alerter{
		logger:   logger,
		alerts:   alerts,
		client:   &http.Client{Timeout: webhookTimeout},
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Evaluate 对一次检测结果评估所有告警规则。
// ConsecutiveFailures 和 HealthScoreBelow 需要聚合状态，
// 因此这里同时接收更新后的健康度快照。
func (a *Alerter) Evaluate(target config.Target, check models.HealthCheck, health models.TargetHealth) {
	for _, alert := range a.alerts {
		if !shouldTrigger(alert, check, health) {
			continue
		}

		if !a.allow(alert, target.Name) {
			a.logger.Debug("告警处于冷却期，跳过发送",
				zap.String("alert", alert.Name),
				zap.String("target", target.Name))
			continue
		}

		// 异步发送，webhook 调用不阻塞轮询循环
		go a.dispatch(alert, target, check)
	}
}

// shouldTrigger 判断规则的任一触发条件是否满足
func shouldTrigger(alert config.Alert, check models.HealthCheck, health models.TargetHealth) bool {
	for _, trigger := range alert.TriggerOn {
		switch {
		case trigger.ResponseTimeMs != nil:
			if check.ResponseTime.Milliseconds() > *trigger.ResponseTimeMs {
				return true
			}
		case trigger.CertExpiringDays != nil:
			if check.CertDaysLeft != nil && *check.CertDaysLeft <= *trigger.CertExpiringDays {
				return true
			}
		case trigger.ConsecutiveFailures != nil:
			if health.ConsecutiveFailures >= *trigger.ConsecutiveFailures {
				return true
			}
		case trigger.HealthScoreBelow != nil:
			if health.HealthScore < *trigger.HealthScoreBelow {
				return true
			}
		}
	}
	return false
}

// allow 检查并占用冷却窗口。检查和记录在同一把锁内完成，
// 保证同一 (规则, 目标) 在冷却期内不会重复发送。
func (a *Alerter) allow(alert config.Alert, targetName string) bool {
	key := fmt.Sprintf("%s:%s", alert.Name, targetName)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if last, ok := a.lastSent[key]; ok {
		if now.Sub(last) < alert.Cooldown() {
			return false
		}
	}
	a.lastSent[key] = now
	return true
}

type webhookPayload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Color  string  `json:"color"`
	Fields []field `json:"fields"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// dispatch 发送 webhook 通知。投递失败不重试、不上报，
// 只影响本次通知，绝不影响轮询循环。
func (a *Alerter) dispatch(alert config.Alert, target config.Target, check models.HealthCheck) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("发送告警通知时发生panic",
				zap.Any("panic", r),
				zap.String("alert", alert.Name),
				zap.String("target", target.Name))
		}
	}()

	dispatchID := uuid.NewString()
	a.logger.Info("触发告警",
		zap.String("dispatchId", dispatchID),
		zap.String("alert", alert.Name),
		zap.String("target", target.Name),
		zap.Int("statusCode", check.StatusCode),
		zap.Int64("responseTimeMs", check.ResponseTime.Milliseconds()),
		zap.String("error", check.Error))

	status := "Error"
	if check.StatusCode != 0 {
		status = fmt.Sprintf("%d", check.StatusCode)
	}
	errText := check.Error
	if errText == "" {
		errText = "N/A"
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("🚨 Alert: %s - %s", alert.Name, target.Name),
		Attachments: []attachment{
			{
				Color: "danger",
				Fields: []field{
					{Title: "Target", Value: target.Name, Short: true},
					{Title: "URL", Value: target.URL, Short: true},
					{Title: "Status", Value: status, Short: true},
					{Title: "Response Time", Value: fmt.Sprintf("%dms", check.ResponseTime.Milliseconds()), Short: true},
					{Title: "Error", Value: errText, Short: false},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Debug("序列化告警通知失败", zap.String("dispatchId", dispatchID), zap.Error(err))
		return
	}

	// 使用独立的 context，避免轮询循环的取消影响通知发送
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, alert.WebhookURL, bytes.NewReader(body))
	if err != nil {
		a.logger.Debug("创建告警通知请求失败", zap.String("dispatchId", dispatchID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// 投递失败静默丢弃
		a.logger.Debug("发送告警通知失败", zap.String("dispatchId", dispatchID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	a.logger.Debug("告警通知已发送",
		zap.String("dispatchId", dispatchID),
		zap.Int("statusCode", resp.StatusCode))
}
