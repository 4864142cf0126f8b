package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MetadataChildrenRoute 是唯一需要解析响应体的源站接口。
const MetadataChildrenRoute = "/library/metadata/:id/children"

// ProxyHandler describes a component that answers one inbound request by
// talking to the upstreams. It allows injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions lists the collaborators of the Fiber application.
type AppOptions struct {
	Logger *logrus.Logger
	// Metadata handles GET MetadataChildrenRoute.
	Metadata ProxyHandler
	// Fallback handles every other method/path combination.
	Fallback ProxyHandler
}

const contextKeyRequestID = "_plexoffload_request_id"

// NewApp builds the Fiber application. Fiber's default Content-Type is
// disabled so upstream headers pass through unchanged; Date is owned by
// fasthttp and always reflects the proxy's clock. The request id is kept for
// logs only.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Metadata == nil {
		return nil, errors.New("metadata handler is required")
	}
	if opts.Fallback == nil {
		return nil, errors.New("fallback handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive:             true,
		StrictRouting:             true,
		StreamRequestBody:         true,
		DisableDefaultContentType: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware)

	app.Get(MetadataChildrenRoute, func(c fiber.Ctx) error {
		return opts.Metadata.Handle(c)
	})
	// 注册在元数据路由之后的前缀中间件，兜底所有其它方法与路径。
	app.Use(func(c fiber.Ctx) error {
		return opts.Fallback.Handle(c)
	})

	return app, nil
}

func requestIDMiddleware(c fiber.Ctx) error {
	c.Locals(contextKeyRequestID, uuid.NewString())
	return c.Next()
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
