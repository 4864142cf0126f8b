package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/plex-offload/plex-offload/internal/config"
)

// Targets 聚合启动时解析好的上游地址，此后只读，可被所有请求并发共享。
type Targets struct {
	// Origin 是媒体服务器的基础地址；转发时整体替换其 path/query。
	Origin *url.URL
	// LibraryRoot 是源站报告的文件路径必须具备的前缀。
	LibraryRoot string
	// Gateway 为存储网关基础地址，已去掉末尾的 '/'。
	Gateway string
}

// NewTargets 根据配置构建 Targets。调用方应在启动阶段创建一次并复用。
func NewTargets(cfg *config.Config) (*Targets, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	origin, err := url.Parse(cfg.OriginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin url: %w", err)
	}
	if origin.Host == "" {
		return nil, fmt.Errorf("origin url %q has no host", cfg.OriginURL)
	}

	gateway := strings.TrimRight(cfg.GatewayURL, "/")
	if _, err := url.Parse(gateway); err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}

	return &Targets{
		Origin:      origin,
		LibraryRoot: cfg.LibraryPath,
		Gateway:     gateway,
	}, nil
}

// OriginURL returns the origin address for an inbound request, replacing the
// origin's path and query with the ones the client sent. rawPath is expected
// in its escaped form.
func (t *Targets) OriginURL(rawPath, rawQuery string) *url.URL {
	u := *t.Origin
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = rawQuery

	if rawPath == "" {
		rawPath = "/"
	}
	if unescaped, err := url.PathUnescape(rawPath); err == nil {
		u.Path = unescaped
		u.RawPath = rawPath
	} else {
		u.Path = rawPath
		u.RawPath = ""
	}
	return &u
}

// GatewayURL 将源站文件路径映射为网关地址：去掉 LibraryRoot 前缀与开头的 '/'，
// 逐段转义后拼接到 Gateway。文件不在 LibraryRoot 下时返回 false。
func (t *Targets) GatewayURL(file string) (*url.URL, bool) {
	rel, ok := strings.CutPrefix(file, t.LibraryRoot)
	if !ok {
		return nil, false
	}
	rel = strings.TrimLeft(rel, "/")

	segments := strings.Split(rel, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	target, err := url.Parse(t.Gateway + "/" + strings.Join(segments, "/"))
	if err != nil {
		return nil, false
	}
	return target, true
}
