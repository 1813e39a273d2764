package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultExportFileはエクスポート先を省略した場合のファイル名
const DefaultExportFile = "IP_Scan_Results.xlsx"

type Config struct {
	Subnets       string        `yaml:"subnets"`
	ScanSpeed     int           `yaml:"speed"`
	Timeout       time.Duration `yaml:"-"`
	WorkerCount   int64         `yaml:"workers"`
	Privileged    bool          `yaml:"privileged"`
	SkipBroadcast bool          `yaml:"skip_broadcast"`
	Verbose       bool          `yaml:"verbose"`
	Export        string        `yaml:"export"`
}

// Durationは "500ms" のような文字列をYAMLから読み込む
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

type fileConfig struct {
	Config  `yaml:",inline"`
	Timeout Duration `yaml:"timeout"`
}

// Loadは設定ファイル(YAML)を読み込む
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}
	cfg := fc.Config
	cfg.Timeout = fc.Timeout.Duration
	return &cfg, nil
}

// AdjustSettingsはスキャン速度に応じてタイムアウトとワーカー数を設定する。
// 明示的に指定された値はそのまま残す。
func AdjustSettings(cfg *Config) {
	var timeout time.Duration
	var workers int64
	switch cfg.ScanSpeed {
	case 1:
		timeout, workers = 2*time.Second, 10
	case 2:
		timeout, workers = 1*time.Second, 50
	default:
		timeout, workers = 500*time.Millisecond, 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = workers
	}
}
