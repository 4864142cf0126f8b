package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v3"

	"github.com/plex-offload/plex-offload/internal/server"
)

// Streamer 把一次 HTTP 交换转发到目标地址，请求体与响应体均以流的方式传递，
// 不在内存中完整缓存。
type Streamer struct {
	client *http.Client
}

// NewStreamer 使用共享的上游 client 构建 Streamer；client 应由
// server.NewUpstreamClient 创建，以保证不跟随重定向。
func NewStreamer(client *http.Client) *Streamer {
	return &Streamer{client: client}
}

// Forward 向 target 发送请求并返回上游响应，调用方负责关闭 resp.Body。
// contentLength 为 -1 表示长度未知（chunked）。hop-by-hop 头与 Accept-Encoding
// 不会被转发，后者交由 Transport 协商 gzip 并透明解压。
func (s *Streamer) Forward(
	ctx context.Context,
	target *url.URL,
	method string,
	header http.Header,
	body io.Reader,
	contentLength int64,
) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if body == nil || contentLength == 0 {
		body = http.NoBody
		contentLength = 0
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrGateway, err)
	}
	req.ContentLength = contentLength
	if header != nil {
		server.CopyHeaders(req.Header, header)
	}
	req.Header.Del("Accept-Encoding")
	req.Header.Del("Content-Length")
	req.Header.Del("Host")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return resp, nil
}

// Relay 将上游响应的状态码、头与正文写回客户端。正文由 fasthttp 在 handler
// 返回后逐块读取并在结束时关闭；读取中途失败时调用 onStreamError。
func (s *Streamer) Relay(c fiber.Ctx, resp *http.Response, onStreamError func(error)) error {
	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		resp.Body.Close()
		if resp.ContentLength >= 0 {
			c.Response().Header.SetContentLength(int(resp.ContentLength))
		}
		return nil
	}

	size := -1
	if resp.ContentLength >= 0 {
		size = int(resp.ContentLength)
	}
	return c.SendStream(&streamBody{body: resp.Body, onError: onStreamError}, size)
}

// streamBody 在首次非 EOF 读错误时回调，用于记录中途断开的上游连接。
type streamBody struct {
	body    io.ReadCloser
	onError func(error)
	failed  bool
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && !b.failed {
		b.failed = true
		if b.onError != nil {
			b.onError(fmt.Errorf("%w: %w", ErrGateway, err))
		}
	}
	return n, err
}

func (b *streamBody) Close() error {
	return b.body.Close()
}

// requestHeaders 将 fasthttp 请求头转换为 http.Header。
func requestHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// requestBody 返回入站请求体及其长度；启用 StreamRequestBody 时直接使用底层流。
func requestBody(c fiber.Ctx) (io.Reader, int64) {
	length := int64(c.Request().Header.ContentLength())
	if length == 0 {
		return http.NoBody, 0
	}
	if length < 0 {
		length = -1
	}
	if stream := c.Request().BodyStream(); stream != nil {
		return stream, length
	}
	body := c.Body()
	if len(body) == 0 {
		return http.NoBody, 0
	}
	return bytes.NewReader(body), int64(len(body))
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}
