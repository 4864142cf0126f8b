package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var repoRoot string

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			repoRoot = dir
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	if repoRoot == "" {
		t.Fatal("无法定位项目根目录")
	}
	return repoRoot
}

func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}

// clearConfigEnv 清空会覆盖配置文件的环境变量，避免宿主环境影响测试。
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_PORT", "PLEX_URL", "PLEX_LIBRARY_PATH", "RCLONE_URL", "METRICS_PORT",
		"SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FILE_PATH", "LOG_MAX_SIZE",
		"LOG_MAX_BACKUPS", "LOG_COMPRESS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// useBufferWriters 在测试期间把 stdOut/stdErr 替换为内存缓冲区。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}
