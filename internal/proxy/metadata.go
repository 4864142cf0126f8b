package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/plex-offload/plex-offload/internal/metrics"
	"github.com/plex-offload/plex-offload/internal/plex"
)

// MaxCaptureBytes 是捕获元数据时允许缓存的最大响应体。
const MaxCaptureBytes = 1 << 20

const captureFailureBody = "Failed to read response body"

// HandleMetadata 处理 GET /library/metadata/:id/children：回源后在 200 时缓存
// 响应体，登记 token 与其中的媒体分片，再把原始状态码、头与字节原样返回。
// 非 200（以及 HEAD）响应直接流式透传，不做任何解析。
func (h *Handler) HandleMetadata(c fiber.Ctx) error {
	info := newRequestInfo(c, metrics.RouteCapture)

	resp, target, err := h.forwardToOrigin(c)
	if err != nil {
		return h.fail(c, info, metrics.TargetOrigin, target, err, gatewayFailureBody)
	}
	if resp.StatusCode != http.StatusOK || c.Method() == http.MethodHead {
		return h.relay(c, resp, info, metrics.TargetOrigin, target)
	}

	// token 的登记与解析结果无关。
	if token := c.Get(TokenHeader); token != "" {
		h.state.Tokens.Add(strings.Clone(token))
	}

	data, err := readCapped(resp.Body, MaxCaptureBytes)
	resp.Body.Close()
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			h.metrics.CaptureError(metrics.ReasonTooLarge)
		}
		return h.fail(c, info, metrics.TargetOrigin, target, err, captureFailureBody)
	}

	h.capture(info, data, resp.Header.Get("Content-Type"))

	copyResponseHeaders(c, resp.Header)
	h.logResult(info, metrics.TargetOrigin, target.String(), resp.StatusCode, nil)
	return c.Status(resp.StatusCode).Send(data)
}

// capture 解析元数据并写入媒体索引；解析失败只记录日志。
func (h *Handler) capture(info requestInfo, data []byte, contentType string) {
	parts, err := plex.ParseParts(data, contentType)
	if err != nil {
		h.metrics.CaptureError(metrics.ReasonParse)
		fields := info.fields()
		fields["action"] = "metadata_capture"
		fields["error"] = err.Error()
		fields["content_type"] = contentType
		h.logger.WithFields(fields).Warn("metadata_parse_failed")
		return
	}

	for _, part := range parts {
		h.state.Media.Put(part.Key, part.File)
	}
	h.metrics.CapturedParts(len(parts))

	fields := info.fields()
	fields["action"] = "metadata_capture"
	fields["parts"] = len(parts)
	h.logger.WithFields(fields).Debug("metadata_captured")
}

// readCapped 读取完整响应体，超过 limit 字节返回 ErrBodyTooLarge。
func readCapped(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}
