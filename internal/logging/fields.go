package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/plex-offload/plex-offload/internal/config"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供路由/方法/路径字段，供代理请求日志复用。
func RequestFields(route, method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"route":  route,
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// ConfigFields 输出启动时生效的关键配置，方便排查部署问题。
func ConfigFields(cfg *config.Config) logrus.Fields {
	return logrus.Fields{
		"listen_port":  cfg.ListenPort,
		"origin_url":   cfg.OriginURL,
		"library_path": cfg.LibraryPath,
		"gateway_url":  cfg.GatewayURL,
		"metrics_port": cfg.MetricsPort,
	}
}
