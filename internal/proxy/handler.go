package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/plex-offload/plex-offload/internal/logging"
	"github.com/plex-offload/plex-offload/internal/metrics"
	"github.com/plex-offload/plex-offload/internal/server"
)

// TokenHeader 是客户端携带访问 token 的请求头，读取时大小写不敏感。
const TokenHeader = "X-Plex-Token"

const gatewayFailureBody = "Failed to proxy request"

// Handler 实现两条入口：元数据捕获（HandleMetadata）与兜底策略（HandleFallback）。
// 只有先前在捕获元数据时出现过的 token 才会被重定向到网关，其余一律回源。
type Handler struct {
	streamer *Streamer
	state    *State
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewHandler constructs a proxy handler. m may be nil to disable metrics.
func NewHandler(streamer *Streamer, state *State, logger *logrus.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		streamer: streamer,
		state:    state,
		logger:   logger,
		metrics:  m,
	}
}

// requestInfo 保存日志所需的请求属性。fasthttp 会复用请求缓冲区，因此这里的
// 字符串均为拷贝，可在 handler 返回后的流式阶段继续使用。
type requestInfo struct {
	route     string
	method    string
	path      string
	requestID string
	started   time.Time
}

func newRequestInfo(c fiber.Ctx, route string) requestInfo {
	return requestInfo{
		route:     route,
		method:    strings.Clone(c.Method()),
		path:      strings.Clone(c.Path()),
		requestID: server.RequestID(c),
		started:   time.Now(),
	}
}

func (i requestInfo) fields() logrus.Fields {
	return logging.RequestFields(i.route, i.method, i.path, i.requestID)
}

// HandleFallback 处理除元数据捕获路由外的所有请求。
func (h *Handler) HandleFallback(c fiber.Ctx) error {
	info := newRequestInfo(c, metrics.RouteFallback)
	if target, ok := h.gatewayTarget(c, info); ok {
		return h.proxyGateway(c, target, info)
	}
	return h.proxyOrigin(c, info)
}

// gatewayTarget 依次检查 token、媒体索引与库路径前缀，任何一步不满足都回源。
func (h *Handler) gatewayTarget(c fiber.Ctx, info requestInfo) (*url.URL, bool) {
	token := c.Get(TokenHeader)
	if token == "" || !h.state.Tokens.Contains(token) {
		return nil, false
	}

	file, ok := h.state.Media.Get(c.Path())
	if !ok {
		return nil, false
	}

	target, ok := h.state.Targets.GatewayURL(file)
	if !ok {
		fields := info.fields()
		fields["action"] = "gateway_redirect"
		fields["file"] = file
		fields["library_root"] = h.state.Targets.LibraryRoot
		h.logger.WithFields(fields).Info("media_outside_library")
		return nil, false
	}
	return target, true
}

// proxyGateway 以不带任何头与正文的 GET 请求网关，并原样返回其响应。
func (h *Handler) proxyGateway(c fiber.Ctx, target *url.URL, info requestInfo) error {
	fields := info.fields()
	fields["action"] = "gateway_redirect"
	fields["upstream"] = target.String()
	h.logger.WithFields(fields).Info("gateway_redirect")

	resp, err := h.streamer.Forward(upstreamContext(), target, http.MethodGet, nil, nil, 0)
	if err != nil {
		return h.fail(c, info, metrics.TargetGateway, target, err, gatewayFailureBody)
	}
	return h.relay(c, resp, info, metrics.TargetGateway, target)
}

// proxyOrigin 将请求原样（方法、路径、查询、头、正文）转发给源站。
func (h *Handler) proxyOrigin(c fiber.Ctx, info requestInfo) error {
	resp, target, err := h.forwardToOrigin(c)
	if err != nil {
		return h.fail(c, info, metrics.TargetOrigin, target, err, gatewayFailureBody)
	}
	return h.relay(c, resp, info, metrics.TargetOrigin, target)
}

func (h *Handler) forwardToOrigin(c fiber.Ctx) (*http.Response, *url.URL, error) {
	target := h.state.Targets.OriginURL(c.Path(), string(c.Request().URI().QueryString()))
	body, length := requestBody(c)
	resp, err := h.streamer.Forward(upstreamContext(), target, c.Method(), requestHeaders(c), body, length)
	return resp, target, err
}

func (h *Handler) relay(c fiber.Ctx, resp *http.Response, info requestInfo, target string, upstream *url.URL) error {
	upstreamURL := upstream.String()
	status := resp.StatusCode
	h.logResult(info, target, upstreamURL, status, nil)
	return h.streamer.Relay(c, resp, func(err error) {
		fields := info.fields()
		fields["action"] = "proxy_stream"
		fields["target"] = target
		fields["upstream"] = upstreamURL
		fields["upstream_status"] = status
		fields["elapsed_ms"] = time.Since(info.started).Milliseconds()
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_stream_failed")
	})
}

// fail 记录失败并以固定文本返回 502。
func (h *Handler) fail(c fiber.Ctx, info requestInfo, target string, upstream *url.URL, err error, body string) error {
	upstreamURL := ""
	if upstream != nil {
		upstreamURL = upstream.String()
	}
	h.logResult(info, target, upstreamURL, 0, err)
	return c.Status(fiber.StatusBadGateway).SendString(body)
}

func (h *Handler) logResult(info requestInfo, target, upstream string, status int, err error) {
	fields := info.fields()
	fields["action"] = "proxy"
	fields["target"] = target
	fields["upstream"] = upstream
	fields["upstream_status"] = status
	fields["elapsed_ms"] = time.Since(info.started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		h.metrics.Request(info.route, target, metrics.OutcomeError)
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.metrics.Request(info.route, target, metrics.OutcomeOK)
	h.logger.WithFields(fields).Info("proxy_complete")
}

// upstreamContext 返回上游请求使用的 context。客户端断开不会主动取消上游请求，
// 由传输层在写回失败时关闭连接。
func upstreamContext() context.Context {
	return context.Background()
}
