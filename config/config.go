// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/callrunner/internal/callflow"
	"github.com/cardinalhq/callrunner/internal/devicebridge"
	"github.com/cardinalhq/callrunner/internal/healthcheck"
	"github.com/cardinalhq/callrunner/internal/lease"
	"github.com/cardinalhq/callrunner/internal/poller"
	"github.com/cardinalhq/callrunner/internal/uploader"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

const EnvPrefix = "CALLRUNNER"

type Config struct {
	// StorePath is the YAML file holding the lease and identities.
	StorePath  string              `mapstructure:"store_path"`
	Identities IdentitiesConfig    `mapstructure:"identities"`
	Queue      workqueue.Config    `mapstructure:"queue"`
	Poller     poller.Config       `mapstructure:"poller"`
	Lease      lease.Config        `mapstructure:"lease"`
	Call       callflow.Config     `mapstructure:"call"`
	Upload     uploader.Config     `mapstructure:"upload"`
	Bridge     devicebridge.Config `mapstructure:"bridge"`
	Health     healthcheck.Config  `mapstructure:"health"`
	History    HistoryConfig       `mapstructure:"history"`
}

// IdentitiesConfig seeds the stored identities when set.
type IdentitiesConfig struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

func (c IdentitiesConfig) IsSet() bool {
	return strings.TrimSpace(c.Primary) != "" || strings.TrimSpace(c.Secondary) != ""
}

func (c IdentitiesConfig) Identities() workqueue.Identities {
	return workqueue.Identities{Primary: c.Primary, Secondary: c.Secondary}
}

type HistoryConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Capacity uint64        `mapstructure:"capacity"`
}

func Default() *Config {
	return &Config{
		StorePath: "callrunner-state.yaml",
		Queue:     workqueue.DefaultConfig(),
		Poller:    poller.DefaultConfig(),
		Lease:     lease.DefaultConfig(),
		Call:      callflow.DefaultConfig(),
		Upload:    uploader.DefaultConfig(),
		Bridge:    devicebridge.DefaultConfig(),
		Health:    healthcheck.DefaultConfig(),
		History: HistoryConfig{
			TTL:      callflow.DefaultHistoryTTL,
			Capacity: callflow.DefaultHistoryCapacity,
		},
	}
}

// Load reads config.yaml from the working directory, or file when given,
// and overlays CALLRUNNER_* environment variables on the defaults.
func Load(file string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Health = cfg.Health.WithEnvOverride()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StorePath) == "" {
		errs = append(errs, errors.New("store_path is required"))
	}
	if c.Poller.FastInterval <= 0 || c.Poller.SlowInterval <= 0 {
		errs = append(errs, errors.New("poller intervals must be positive"))
	}
	if c.Poller.FastWindow <= 0 {
		errs = append(errs, errors.New("poller.fast_window must be positive"))
	}
	if c.Lease.StaleAfter <= 0 {
		errs = append(errs, errors.New("lease.stale_after must be positive"))
	}
	if c.Upload.MaxAttempts < 1 {
		errs = append(errs, errors.New("upload.max_attempts must be at least 1"))
	}
	if len(c.Upload.Artifacts.SourceDirs) == 0 {
		errs = append(errs, errors.New("upload.artifacts.source_dirs must not be empty"))
	}
	if len(c.Call.MuteLabels) == 0 || len(c.Call.EndCallLabels) == 0 {
		errs = append(errs, errors.New("call labels must not be empty"))
	}
	return errors.Join(errs...)
}

func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
