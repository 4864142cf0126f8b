package proxy

import "errors"

var (
	// ErrGateway 表示与源站或网关的连接、发送或流式读取失败。
	ErrGateway = errors.New("upstream request failed")
	// ErrBodyTooLarge 表示待解析的元数据响应超过 MaxCaptureBytes。
	ErrBodyTooLarge = errors.New("metadata response exceeds capture limit")
)
