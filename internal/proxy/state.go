package proxy

import (
	"github.com/plex-offload/plex-offload/internal/cache"
	"github.com/plex-offload/plex-offload/internal/server"
)

// State 是启动时创建一次、由所有请求共享的状态。两张表各自加锁，互不嵌套；
// Targets 只读。
type State struct {
	Tokens  *cache.TokenCache
	Media   *cache.MediaIndex
	Targets *server.Targets
}

// NewState 以空的 token 集合与媒体索引构建 State。
func NewState(targets *server.Targets) *State {
	return &State{
		Tokens:  cache.NewTokenCache(),
		Media:   cache.NewMediaIndex(),
		Targets: targets,
	}
}
