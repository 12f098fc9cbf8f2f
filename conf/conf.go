// Package conf loads the application configuration from file and
// environment, and exposes each section to the fx graph.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/metrics"
	"github.com/arbiterhq/arbiter/internal/pdp/dispatch"
	"github.com/arbiterhq/arbiter/internal/server"
	"github.com/arbiterhq/arbiter/internal/server/biz"
	"github.com/arbiterhq/arbiter/internal/store"
)

type Config struct {
	APIServer server.Config    `conf:"server" yaml:"server" json:"server"`
	Log       log.Config       `conf:"log" yaml:"log" json:"log"`
	Store     store.Config     `conf:"store" yaml:"store" json:"store"`
	Policy    biz.PolicyConfig `conf:"policy" yaml:"policy" json:"policy"`
	Check     dispatch.Config  `conf:"check" yaml:"check" json:"check"`
	Auth      biz.AuthConfig   `conf:"auth" yaml:"auth" json:"auth"`
	Traces    biz.TraceConfig  `conf:"traces" yaml:"traces" json:"traces"`
	Metrics   metrics.Config   `conf:"metrics" yaml:"metrics" json:"metrics"`
}

// Module provides the loaded configuration and its sections.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Provide(
		func(c Config) server.Config { return c.APIServer },
		func(c Config) log.Config { return c.Log },
		func(c Config) store.Config { return c.Store },
		func(c Config) biz.PolicyConfig { return c.Policy },
		func(c Config) dispatch.Config { return c.Check },
		func(c Config) biz.AuthConfig { return c.Auth },
		func(c Config) biz.TraceConfig { return c.Traces },
		func(c Config) metrics.Config { return c.Metrics },
	),
)

// Load reads arbiter.yml from the working directory, /etc/arbiter or
// $HOME/.arbiter, then applies ARBITER_* environment overrides. A missing
// config file is fine; every section has a usable default.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("arbiter")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./conf")
	v.AddConfigPath("$HOME/.arbiter")
	v.AddConfigPath("/etc/arbiter")

	v.SetEnvPrefix("arbiter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "arbiter")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("log.name", "arbiter")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("store.backend", store.BackendMemory)

	v.SetDefault("check.query_timeout", 5*time.Second)
	v.SetDefault("check.shards", 8)
	v.SetDefault("check.shard_workers", 8)

	v.SetDefault("traces.buffer_size", 256)

	v.SetDefault("metrics.exporter", metrics.ExporterStdout)
	v.SetDefault("metrics.interval", time.Minute)
}
