package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 将配置键映射到环境变量，保持与早期部署脚本一致的变量名。
var envBindings = map[string]string{
	"ListenPort":      "LISTEN_PORT",
	"OriginURL":       "PLEX_URL",
	"LibraryPath":     "PLEX_LIBRARY_PATH",
	"GatewayURL":      "RCLONE_URL",
	"MetricsPort":     "METRICS_PORT",
	"ShutdownTimeout": "SHUTDOWN_TIMEOUT",
	"LogLevel":        "LOG_LEVEL",
	"LogFilePath":     "LOG_FILE_PATH",
	"LogMaxSize":      "LOG_MAX_SIZE",
	"LogMaxBackups":   "LOG_MAX_BACKUPS",
	"LogCompress":     "LOG_COMPRESS",
}

// Load 从环境变量与可选的 TOML 文件读取配置，环境变量优先，随后注入默认值并校验。
// path 为空时只读取环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 32401)
	v.SetDefault("MetricsPort", 0)
	v.SetDefault("ShutdownTimeout", "10s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

func applyDefaults(c *Config) {
	c.OriginURL = strings.TrimSpace(c.OriginURL)
	c.GatewayURL = strings.TrimSpace(c.GatewayURL)
	c.LibraryPath = strings.TrimSpace(c.LibraryPath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.ListenPort == 0 {
		c.ListenPort = 32401
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout.DurationValue() == 0 {
		c.ShutdownTimeout = Duration(10 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
