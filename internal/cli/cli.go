package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/divergen371/ipscan/internal/config"
	"github.com/divergen371/ipscan/internal/network"
	"github.com/divergen371/ipscan/internal/scanner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// テスト用に差し替えるプローブ。nilならICMPを使う
var proberOverride scanner.Prober

// テスト用に差し替え可能にするためのSetter
func SetProber(p scanner.Prober) {
	proberOverride = p
}

type options struct {
	cfg        config.Config
	configPath string
}

var RootCmd = NewRootCmd()

func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "ipscan",
		Short:         "サブネットの使用中/空きIPを調べるツール",
		Long:          "指定した/24サブネットの全ホストにICMP Echoを1回ずつ送り、使用中と空きのIPアドレスを一覧にします.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if err := config.ValidateConfig(cfg); err != nil {
				return err
			}
			config.AdjustSettings(cfg)
			return runScan(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.cfg.Subnets, "subnet", "i", "", "スキャン対象のサブネット。カンマ区切りで複数指定可（例: 192.168.100,192.168.101）")
	flags.IntVarP(&opts.cfg.ScanSpeed, "speed", "S", 3, "スキャンスピード (1=遅い, 2=普通, 3=速い)")
	flags.DurationVarP(&opts.cfg.Timeout, "timeout", "T", 0, "1アドレスあたりの応答待ち時間（省略時はスピードに応じて決定）")
	flags.Int64VarP(&opts.cfg.WorkerCount, "workers", "w", 0, "同時に送信するプローブ数（省略時はスピードに応じて決定）")
	flags.BoolVar(&opts.cfg.Privileged, "privileged", false, "rawソケットでICMPを送信する（root権限が必要）")
	flags.BoolVar(&opts.cfg.SkipBroadcast, "skip-broadcast", false, "各サブネットの .255 をスキャン対象から外す")
	flags.StringVarP(&opts.cfg.Export, "export", "x", "", "結果をExcelファイルに書き出す（-x=ファイル名、省略時は "+config.DefaultExportFile+"）")
	flags.Lookup("export").NoOptDefVal = config.DefaultExportFile
	flags.StringVarP(&opts.configPath, "config", "c", "", "設定ファイル(YAML)のパス")
	flags.BoolVarP(&opts.cfg.Verbose, "verbose", "v", false, "詳細出力を有効化")
	return cmd
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if IsInputError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// resolveは設定ファイルを読み込み、明示的に指定されたフラグで上書きする
func (o *options) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := o.cfg
	if o.configPath == "" {
		return &cfg, nil
	}
	fileCfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	merged := *fileCfg
	flags := cmd.Flags()
	if flags.Changed("subnet") {
		merged.Subnets = cfg.Subnets
	}
	if flags.Changed("speed") || merged.ScanSpeed == 0 {
		merged.ScanSpeed = cfg.ScanSpeed
	}
	if flags.Changed("timeout") {
		merged.Timeout = cfg.Timeout
	}
	if flags.Changed("workers") {
		merged.WorkerCount = cfg.WorkerCount
	}
	if flags.Changed("privileged") {
		merged.Privileged = cfg.Privileged
	}
	if flags.Changed("skip-broadcast") {
		merged.SkipBroadcast = cfg.SkipBroadcast
	}
	if flags.Changed("export") {
		merged.Export = cfg.Export
	}
	if flags.Changed("verbose") {
		merged.Verbose = cfg.Verbose
	}
	return &merged, nil
}

func newProber(cfg *config.Config, logger *zap.Logger) scanner.Prober {
	if proberOverride != nil {
		return proberOverride
	}
	return scanner.NewICMPProber(scanner.ICMPConfig{
		Timeout:    cfg.Timeout,
		Privileged: cfg.Privileged,
		Logger:     logger,
	})
}

func runScan(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	logger := newLogger(cfg.Verbose, cmd.ErrOrStderr())
	defer logger.Sync()

	var enumOpts []network.EnumerateOption
	if cfg.SkipBroadcast {
		enumOpts = append(enumOpts, network.WithoutBroadcast())
	}
	candidates, err := network.ExpandPrefixes(cfg.Subnets, enumOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := newTerminalProgress(cmd.ErrOrStderr())
	sinks := multiSink{&textSink{w: out}}
	var exp *exportSink
	if cfg.Export != "" {
		exp = &exportSink{path: cfg.Export}
		sinks = append(sinks, exp)
	}

	coord := scanner.NewCoordinator(newProber(cfg, logger),
		scanner.WithWorkers(cfg.WorkerCount),
		scanner.WithProgressReporter(progress),
		scanner.WithResultSink(sinks),
		scanner.WithLogger(logger),
	)

	fmt.Fprintf(out, "サブネット %s 内の %d アドレスをスキャン中...\n", network.NormalizeInput(cfg.Subnets), len(candidates))
	res, err := coord.Run(ctx, candidates)
	progress.finish()
	if err != nil {
		if res != nil && res.Aborted {
			fmt.Fprintf(out, "スキャンを中断しました: %d/%d 件完了（使用中 %d 件, 空き %d 件, 未送信 %d 件）\n",
				len(res.Occupied)+len(res.Available), res.Total, len(res.Occupied), len(res.Available), len(res.Skipped))
		}
		return err
	}
	fmt.Fprintf(out, "使用中 %d 件, 空き %d 件 (%s)\n", len(res.Occupied), len(res.Available), res.Elapsed.Round(time.Millisecond))

	if exp != nil {
		if exp.err != nil {
			return exp.err
		}
		fmt.Fprintf(out, "結果を %s にエクスポートしました\n", exp.path)
	}
	return nil
}

// IsInputError reports whether err came from an unusable subnet specification.
func IsInputError(err error) bool {
	return errors.Is(err, network.ErrInvalidInput) || errors.Is(err, network.ErrInvalidSubnet)
}
