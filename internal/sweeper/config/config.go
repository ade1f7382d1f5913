package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"sweepbridge.com/pkg/ratelimit"
	"sweepbridge.com/pkg/xredis"
)

// 总配置，对应 config/sweeper.yaml
type SweeperConfig struct {
	Name                string          `mapstructure:"name" yaml:"name"`
	Log                 LogConfig       `mapstructure:"log" yaml:"log"`
	HTTP                HTTPConfig      `mapstructure:"http" yaml:"http"`
	Metrics             MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Trace               TraceConfig     `mapstructure:"trace" yaml:"trace"`
	Redis               RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Crypto              CryptoConfig    `mapstructure:"crypto" yaml:"crypto"`
	Schema              SchemaConfig    `mapstructure:"schema" yaml:"schema"`
	Chains              []ChainConfig   `mapstructure:"chains" yaml:"chains"`
	Tokens              []TokenConfig   `mapstructure:"tokens" yaml:"tokens"`
	DefaultMinAmountRaw string          `mapstructure:"defaultMinAmountRaw" yaml:"defaultMinAmountRaw"`
	Fee                 FeeConfig       `mapstructure:"fee" yaml:"fee"`
	Execution           ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Quote               QuoteConfig     `mapstructure:"quote" yaml:"quote"`
	Breaker             ratelimit.Rule  `mapstructure:"breaker" yaml:"breaker"`
	Schedule            ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

type HTTPConfig struct {
	Addr       string          `mapstructure:"addr" yaml:"addr"`
	CronSecret string          `mapstructure:"cronSecret" yaml:"cronSecret"`
	RateLimit  RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit"`
	// 一次触发最多跑多久，要小于调度平台的超时
	TriggerTimeout time.Duration `mapstructure:"triggerTimeout" yaml:"triggerTimeout"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type TraceConfig struct {
	// 为空则不上报
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

type RedisConfig struct {
	xredis.Config `mapstructure:",squash" yaml:",inline"`
	KeyPrefix     string `mapstructure:"keyPrefix" yaml:"keyPrefix"`
}

type CryptoConfig struct {
	MasterKey string `mapstructure:"masterKey" yaml:"masterKey"`
}

type SchemaConfig struct {
	Version int `mapstructure:"version" yaml:"version"`
}

type ChainConfig struct {
	ID     uint64  `mapstructure:"id" yaml:"id"`
	Name   string  `mapstructure:"name" yaml:"name"`
	RPCURL string  `mapstructure:"rpcUrl" yaml:"rpcUrl"`
	RPS    float64 `mapstructure:"rps" yaml:"rps"`
	// 原生币包装后的 token 符号，一般是 WETH
	WrappedNative string `mapstructure:"wrappedNative" yaml:"wrappedNative"`
}

type TokenConfig struct {
	Symbol   string `mapstructure:"symbol" yaml:"symbol"`
	Decimals int32  `mapstructure:"decimals" yaml:"decimals"`
	// 以 token 为单位，例如 "0.1" USDC
	MinAmount string            `mapstructure:"minAmount" yaml:"minAmount"`
	FeeCap    string            `mapstructure:"feeCap" yaml:"feeCap"`
	Addresses map[uint64]string `mapstructure:"addresses" yaml:"addresses"`
}

type FeeConfig struct {
	BasisPoints int64 `mapstructure:"basisPoints" yaml:"basisPoints"`
}

type ExecutionConfig struct {
	BaseURL            string        `mapstructure:"baseUrl" yaml:"baseUrl"`
	APIKey             string        `mapstructure:"apiKey" yaml:"apiKey"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Validity           time.Duration `mapstructure:"validity" yaml:"validity"`
	MiningPollInterval time.Duration `mapstructure:"miningPollInterval" yaml:"miningPollInterval"`
	MiningTimeout      time.Duration `mapstructure:"miningTimeout" yaml:"miningTimeout"`
}

type QuoteConfig struct {
	BaseURL string        `mapstructure:"baseUrl" yaml:"baseUrl"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ScheduleConfig struct {
	// 本地开发用的进程内定时器，为 0 不启动
	LocalInterval time.Duration `mapstructure:"localInterval" yaml:"localInterval"`
	// 外部调度器的触发间隔，只用于心跳接口展示
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SetDefaults 对没有配置的字段兜底
func (c *SweeperConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "sweeper-service"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit.RPS <= 0 {
		c.HTTP.RateLimit.RPS = 5
	}
	if c.HTTP.RateLimit.Burst <= 0 {
		c.HTTP.RateLimit.Burst = 10
	}
	if c.HTTP.TriggerTimeout <= 0 {
		c.HTTP.TriggerTimeout = 55 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "sweeper"
	}
	if c.Schema.Version == 0 {
		c.Schema.Version = 1
	}
	if c.DefaultMinAmountRaw == "" {
		c.DefaultMinAmountRaw = "100000"
	}
	if c.Execution.Timeout <= 0 {
		c.Execution.Timeout = 15 * time.Second
	}
	if c.Execution.Validity <= 0 {
		c.Execution.Validity = 10 * time.Minute
	}
	if c.Execution.MiningPollInterval <= 0 {
		c.Execution.MiningPollInterval = 2 * time.Second
	}
	if c.Execution.MiningTimeout <= 0 {
		c.Execution.MiningTimeout = 45 * time.Second
	}
	if c.Quote.Timeout <= 0 {
		c.Quote.Timeout = 10 * time.Second
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = time.Minute
	}
	for i := range c.Chains {
		if c.Chains[i].WrappedNative == "" {
			c.Chains[i].WrappedNative = "WETH"
		}
	}
}

// Validate 启动时校验，不合法直接拒绝启动
func (c *SweeperConfig) Validate() error {
	var errs []error

	key, err := hex.DecodeString(strings.TrimPrefix(c.Crypto.MasterKey, "0x"))
	if err != nil || len(key) != 32 {
		errs = append(errs, errors.New("crypto.masterKey must be 32 bytes hex"))
	}
	if c.HTTP.CronSecret == "" {
		errs = append(errs, errors.New("http.cronSecret is required"))
	}
	if len(c.Chains) == 0 {
		errs = append(errs, errors.New("at least one chain is required"))
	}
	seen := make(map[uint64]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.ID == 0 || ch.RPCURL == "" {
			errs = append(errs, fmt.Errorf("chain %q: id and rpcUrl are required", ch.Name))
		}
		if seen[ch.ID] {
			errs = append(errs, fmt.Errorf("chain %d configured twice", ch.ID))
		}
		seen[ch.ID] = true
	}
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			errs = append(errs, errors.New("token symbol is required"))
			continue
		}
		if len(t.Addresses) == 0 {
			errs = append(errs, fmt.Errorf("token %s: at least one address is required", t.Symbol))
		}
		for _, amount := range []string{t.MinAmount, t.FeeCap} {
			if amount == "" {
				continue
			}
			if d, err := decimal.NewFromString(amount); err != nil || d.IsNegative() {
				errs = append(errs, fmt.Errorf("token %s: invalid amount %q", t.Symbol, amount))
			}
		}
	}
	if d, err := decimal.NewFromString(c.DefaultMinAmountRaw); err != nil || !d.IsInteger() || d.IsNegative() {
		errs = append(errs, fmt.Errorf("invalid defaultMinAmountRaw %q", c.DefaultMinAmountRaw))
	}
	if c.Fee.BasisPoints < 0 || c.Fee.BasisPoints > 10000 {
		errs = append(errs, fmt.Errorf("fee.basisPoints out of range: %d", c.Fee.BasisPoints))
	}
	if c.Execution.BaseURL == "" {
		errs = append(errs, errors.New("execution.baseUrl is required"))
	}
	return errors.Join(errs...)
}
