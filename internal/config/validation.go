package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return newFieldError("MetricsPort", "必须在 0-65535")
	}
	if c.MetricsPort != 0 && c.MetricsPort == c.ListenPort {
		return newFieldError("MetricsPort", "不能与 ListenPort 相同")
	}
	if err := validateUpstream(c.OriginURL); err != nil {
		return newFieldError("OriginURL", err.Error())
	}
	if err := validateUpstream(c.GatewayURL); err != nil {
		return newFieldError("GatewayURL", err.Error())
	}
	if c.LibraryPath == "" {
		return newFieldError("LibraryPath", "不能为空")
	}
	if !path.IsAbs(c.LibraryPath) {
		return newFieldError("LibraryPath", "必须是绝对路径")
	}
	if c.ShutdownTimeout.DurationValue() < 0 {
		return newFieldError("ShutdownTimeout", "不能为负数")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", err.Error())
	}
	if c.LogMaxSize < 0 || c.LogMaxBackups < 0 {
		return newFieldError("LogMaxSize/LogMaxBackups", "不能为负数")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
