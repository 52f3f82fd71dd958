package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMethod          = "GET"
	DefaultTimeoutSeconds  = 10.0
	DefaultIntervalSeconds = 60.0
	DefaultMaxFailures     = 3
	DefaultHealthWindow    = 60
	DefaultCooldownMinutes = 30
)

// Config 完整的监控配置
type Config struct {
	Targets  []Target `mapstructure:"targets" yaml:"targets"`
	Settings Settings `mapstructure:"settings" yaml:"settings"`
	Alerts   []Alert  `mapstructure:"alerts" yaml:"alerts,omitempty"`
}

// Target 监控目标（加载后不再修改）
type Target struct {
	Name            string            `mapstructure:"name" yaml:"name"`
	URL             string            `mapstructure:"url" yaml:"url"`
	Method          string            `mapstructure:"method" yaml:"method"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	ExpectedStatus  []int             `mapstructure:"expected_status" yaml:"expected_status,omitempty"`
	ExpectedContent string            `mapstructure:"expected_content" yaml:"expected_content,omitempty"`
	TimeoutSeconds  float64           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	IntervalSeconds float64           `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// Timeout 单次请求超时时间
func (t Target) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds * float64(time.Second))
}

// Interval 检测间隔
func (t Target) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds * float64(time.Second))
}

// IsHTTPS 是否为 HTTPS 目标
func (t Target) IsHTTPS() bool {
	return strings.HasPrefix(strings.ToLower(t.URL), "https://")
}

// Settings 全局设置
type Settings struct {
	DefaultInterval          float64 `mapstructure:"default_interval" yaml:"default_interval"`
	DefaultTimeout           float64 `mapstructure:"default_timeout" yaml:"default_timeout"`
	MaxConsecutiveFailures   int     `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	HealthCheckWindowMinutes int     `mapstructure:"health_check_window_minutes" yaml:"health_check_window_minutes"`
	OutputFormat             string  `mapstructure:"output_format" yaml:"output_format"`
	EnableColors             bool    `mapstructure:"enable_colors" yaml:"enable_colors"`
	LogFile                  string  `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// Alert 告警规则
type Alert struct {
	Name            string    `mapstructure:"name" yaml:"name"`
	WebhookURL      string    `mapstructure:"webhook_url" yaml:"webhook_url"`
	TriggerOn       []Trigger `mapstructure:"trigger_on" yaml:"trigger_on"`
	CooldownMinutes int       `mapstructure:"cooldown_minutes" yaml:"cooldown_minutes"`
}

// Cooldown 同一 (规则, 目标) 两次通知之间的最小间隔
func (a Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// Trigger 告警触发条件，每个条件只能设置其中一项
type Trigger struct {
	ConsecutiveFailures *int     `mapstructure:"consecutive_failures" yaml:"consecutive_failures,omitempty"`
	ResponseTimeMs      *int64   `mapstructure:"response_time_ms" yaml:"response_time_ms,omitempty"`
	HealthScoreBelow    *float64 `mapstructure:"health_score_below" yaml:"health_score_below,omitempty"`
	CertExpiringDays    *int     `mapstructure:"cert_expiring_days" yaml:"cert_expiring_days,omitempty"`
}

// Load 从 YAML 文件加载配置并校验
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Settings.DefaultInterval <= 0 {
		c.Settings.DefaultInterval = DefaultIntervalSeconds
	}
	if c.Settings.DefaultTimeout <= 0 {
		c.Settings.DefaultTimeout = DefaultTimeoutSeconds
	}
	if c.Settings.MaxConsecutiveFailures <= 0 {
		c.Settings.MaxConsecutiveFailures = DefaultMaxFailures
	}
	if c.Settings.HealthCheckWindowMinutes <= 0 {
		c.Settings.HealthCheckWindowMinutes = DefaultHealthWindow
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = "pretty"
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Method == "" {
			t.Method = DefaultMethod
		}
		t.Method = strings.ToUpper(t.Method)
		if t.TimeoutSeconds <= 0 {
			t.TimeoutSeconds = c.Settings.DefaultTimeout
		}
		if t.IntervalSeconds <= 0 {
			t.IntervalSeconds = c.Settings.DefaultInterval
		}
	}

	for i := range c.Alerts {
		if c.Alerts[i].CooldownMinutes <= 0 {
			c.Alerts[i].CooldownMinutes = DefaultCooldownMinutes
		}
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	names := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if err := t.validate(); err != nil {
			return fmt.Errorf("target[%d] %q: %w", i, t.Name, err)
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("duplicate target name: %s", t.Name)
		}
		names[t.Name] = struct{}{}
	}

	for i, a := range c.Alerts {
		if err := a.validate(); err != nil {
			return fmt.Errorf("alert[%d] %q: %w", i, a.Name, err)
		}
	}

	return nil
}

func (t Target) validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.URL, validation.Required, is.URL),
		validation.Field(&t.Method, validation.Required, validation.In(
			"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS", "PATCH")),
		validation.Field(&t.TimeoutSeconds, validation.Required, validation.Min(0.001)),
		validation.Field(&t.IntervalSeconds, validation.Required, validation.Min(0.001)),
	)
}

func (a Alert) validate() error {
	if err := validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.WebhookURL, validation.Required, is.URL),
		validation.Field(&a.TriggerOn, validation.Required),
	); err != nil {
		return err
	}

	for i, trigger := range a.TriggerOn {
		if err := trigger.validate(); err != nil {
			return fmt.Errorf("trigger_on[%d]: %w", i, err)
		}
	}
	return nil
}

func (tr Trigger) validate() error {
	count := 0
	if tr.ConsecutiveFailures != nil {
		count++
	}
	if tr.ResponseTimeMs != nil {
		count++
	}
	if tr.HealthScoreBelow != nil {
		count++
	}
	if tr.CertExpiringDays != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("exactly one condition must be set, got %d", count)
	}
	return nil
}

// Example 示例配置（供 init 子命令生成）
func Example() *Config {
	return &Config{
		Targets: []Target{
			{
				Name:            "Production API",
				URL:             "https://api.example.com/health",
				Method:          "GET",
				ExpectedStatus:  []int{200},
				ExpectedContent: `"status":"ok"`,
				TimeoutSeconds:  5,
				IntervalSeconds: 30,
			},
			{
				Name:            "Main Website",
				URL:             "https://example.com",
				Method:          "GET",
				ExpectedStatus:  []int{200, 301, 302},
				TimeoutSeconds:  10,
				IntervalSeconds: 60,
			},
		},
		Settings: Settings{
			DefaultInterval:          DefaultIntervalSeconds,
			DefaultTimeout:           DefaultTimeoutSeconds,
			MaxConsecutiveFailures:   DefaultMaxFailures,
			HealthCheckWindowMinutes: DefaultHealthWindow,
			OutputFormat:             "pretty",
			EnableColors:             true,
		},
		Alerts: []Alert{
			{
				Name:       "Slack Alerts",
				WebhookURL: "https://hooks.slack.com/services/YOUR/WEBHOOK/URL",
				TriggerOn: []Trigger{
					{ConsecutiveFailures: intPtr(3)},
					{ResponseTimeMs: int64Ptr(5000)},
					{CertExpiringDays: intPtr(7)},
				},
				CooldownMinutes: DefaultCooldownMinutes,
			},
		},
	}
}

// WriteExample 生成示例配置文件
func WriteExample(path string) error {
	data, err := yaml.Marshal(Example())
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }
