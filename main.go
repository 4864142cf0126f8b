package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/plex-offload/plex-offload/internal/config"
	"github.com/plex-offload/plex-offload/internal/logging"
	"github.com/plex-offload/plex-offload/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := withConfig(logging.BaseFields("check_config", opts.configPath), cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	fields := withConfig(logging.BaseFields("startup", opts.configPath), cfg)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	// 启动顺序：配置 → 日志 → 上游地址 → 共享状态 → 指标 → 上游 client → handler → Fiber app，
	// 所有请求共享同一份 token 集合与媒体索引。
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务运行失败: %v\n", err)
		return 1
	}
	logger.WithFields(logging.BaseFields("shutdown", opts.configPath)).Info("服务已停止")
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 未指定任何配置文件时只读取环境变量。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("plex-offload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "TOML 配置文件路径（可被 PLEX_OFFLOAD_CONFIG 指定，缺省时只读取环境变量）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PLEX_OFFLOAD_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func withConfig(fields logrus.Fields, cfg *config.Config) logrus.Fields {
	for key, value := range logging.ConfigFields(cfg) {
		fields[key] = value
	}
	return fields
}
