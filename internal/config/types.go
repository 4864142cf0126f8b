package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Config 汇总启动时读取一次、此后不可变的全部参数。
type Config struct {
	// ListenPort 是代理对客户端暴露的端口。
	ListenPort int `mapstructure:"ListenPort"`
	// OriginURL 为被代理媒体服务器的基础地址，例如 http://plex:32400。
	OriginURL string `mapstructure:"OriginURL"`
	// LibraryPath 是源站所有媒体文件所在的绝对路径前缀。
	LibraryPath string `mapstructure:"LibraryPath"`
	// GatewayURL 为以相对路径提供同一目录树的存储网关地址。
	GatewayURL string `mapstructure:"GatewayURL"`

	// MetricsPort 为 0 时不启动 Prometheus 端点。
	MetricsPort     int      `mapstructure:"MetricsPort"`
	ShutdownTimeout Duration `mapstructure:"ShutdownTimeout"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// MetricsEnabled 表示是否需要启动独立的指标监听。
func (c *Config) MetricsEnabled() bool {
	return c != nil && c.MetricsPort > 0
}
