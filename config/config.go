/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package config is the engine's configuration record plus its viper-backed
// loader: JSON/YAML/TOML file, environment variables (LWS_ prefixed), and
// command-line flags registered on a cobra command, in ascending priority.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// TrigMode selects which side of a connection runs edge-triggered.
type TrigMode int

const (
	TrigBothLT   TrigMode = 0
	TrigConnET   TrigMode = 1
	TrigListenET TrigMode = 2
	TrigBothET   TrigMode = 3
)

// Config is the full external configuration record for the engine.
type Config struct {
	Port       int      `mapstructure:"port"`
	TrigMode   TrigMode `mapstructure:"trig_mode"`
	TimeoutMs  int      `mapstructure:"timeout_ms"`
	OpenLinger bool     `mapstructure:"open_linger"`
	ThreadNum  int      `mapstructure:"thread_num"`

	SQLHost    string `mapstructure:"sql_host"`
	SQLPort    int    `mapstructure:"sql_port"`
	SQLUser    string `mapstructure:"sql_user"`
	SQLPwd     string `mapstructure:"sql_pwd"`
	DBName     string `mapstructure:"db_name"`
	SQLConnNum int    `mapstructure:"sql_conn_num"`
	SQLDriver  string `mapstructure:"sql_driver"` // "mysql" or "sqlite"

	OpenLog    bool `mapstructure:"open_log"`
	LogLevel   int  `mapstructure:"log_level"` // 0..3
	LogQueSize int  `mapstructure:"log_que_size"`

	SrcDir string `mapstructure:"src_dir"`
}

// Default returns the engine's built-in defaults, the same values Load
// pre-seeds into viper before a config file or flags override them.
func Default() Config {
	return Config{
		Port:       1316,
		TrigMode:   TrigBothET,
		TimeoutMs:  60000,
		OpenLinger: false,
		ThreadNum:  8,
		SQLHost:    "localhost",
		SQLPort:    3306,
		SQLDriver:  "mysql",
		SQLConnNum: 8,
		OpenLog:    true,
		LogLevel:   0,
		LogQueSize: 1024,
		SrcDir:     "./resources/",
	}
}

// Validate checks the invariants external interfaces require: port range,
// a positive thread count, and a log level in [0, 3].
func (c Config) Validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return ErrInvalidConfig(fmt.Errorf("port %d out of range [1024, 65535]", c.Port))
	}
	if c.ThreadNum <= 0 {
		return ErrInvalidConfig(fmt.Errorf("thread_num must be > 0, got %d", c.ThreadNum))
	}
	if c.LogLevel < 0 || c.LogLevel > 3 {
		return ErrInvalidConfig(fmt.Errorf("log_level %d out of range [0, 3]", c.LogLevel))
	}
	return nil
}

// ListenEdgeTriggered reports whether the listening socket should be
// registered edge-triggered under this trigger mode.
func (c Config) ListenEdgeTriggered() bool {
	return c.TrigMode == TrigListenET || c.TrigMode == TrigBothET
}

// ConnEdgeTriggered reports whether accepted connections should be
// registered edge-triggered under this trigger mode.
func (c Config) ConnEdgeTriggered() bool {
	return c.TrigMode == TrigConnET || c.TrigMode == TrigBothET
}

// Load builds a viper instance seeded with Default(), optionally merges in
// configPath (if non-empty), picks up LWS_-prefixed environment overrides,
// and unmarshals into a Config.
func Load(configPath string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("port", def.Port)
	v.SetDefault("trig_mode", int(def.TrigMode))
	v.SetDefault("timeout_ms", def.TimeoutMs)
	v.SetDefault("open_linger", def.OpenLinger)
	v.SetDefault("thread_num", def.ThreadNum)
	v.SetDefault("sql_host", def.SQLHost)
	v.SetDefault("sql_port", def.SQLPort)
	v.SetDefault("sql_user", def.SQLUser)
	v.SetDefault("sql_pwd", def.SQLPwd)
	v.SetDefault("db_name", def.DBName)
	v.SetDefault("sql_driver", def.SQLDriver)
	v.SetDefault("sql_conn_num", def.SQLConnNum)
	v.SetDefault("open_log", def.OpenLog)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_que_size", def.LogQueSize)
	v.SetDefault("src_dir", def.SrcDir)

	v.SetEnvPrefix("LWS")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, ErrReadConfig(err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper unmarshals and validates a Config out of a caller-supplied
// viper instance, letting cmd/main.go share the same instance it bound
// BindFlags against so flags/env/file/defaults resolve with one priority
// chain.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, ErrReadConfig(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
