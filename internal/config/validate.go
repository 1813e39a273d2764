package config

import (
	"fmt"

	"github.com/divergen371/ipscan/internal/network"
)

func ValidateConfig(cfg *Config) error {
	if err := validateSubnets(cfg); err != nil {
		return err
	}
	if err := validateScanSpeed(cfg); err != nil {
		return err
	}
	if err := validateTimeout(cfg); err != nil {
		return err
	}
	if err := validateWorkers(cfg); err != nil {
		return err
	}
	return nil
}

func validateSubnets(cfg *Config) error {
	if _, err := network.ParsePrefixes(cfg.Subnets); err != nil {
		return err
	}
	return nil
}

func validateScanSpeed(cfg *Config) error {
	if cfg.ScanSpeed < 1 || cfg.ScanSpeed > 3 {
		return fmt.Errorf("スキャンスピードは1〜3の範囲で指定してください")
	}
	return nil
}

func validateTimeout(cfg *Config) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("タイムアウトは0以上で指定してください")
	}
	return nil
}

func validateWorkers(cfg *Config) error {
	if cfg.WorkerCount < 0 {
		return fmt.Errorf("ワーカー数は0以上で指定してください")
	}
	return nil
}
