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

// Command lightwebserverd runs the HTTP serving engine standalone: parse
// flags/config, build the logger and component stack, run the accept loop
// until SIGINT/SIGTERM, then shut everything down in order.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zyue2022/LightWebServer/config"
	"github.com/zyue2022/LightWebServer/logger"
	"github.com/zyue2022/LightWebServer/server"
)

var configFile string

func main() {
	v := viper.New()
	v.SetEnvPrefix("LWS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "lightwebserverd",
		Short: "single-process, multi-reactor HTTP/1.1 serving engine",
		RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd, v) },
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml/json/toml)")
	config.BindFlags(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, v *viper.Viper) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	cfg, err := config.LoadFromViper(v)
	if err != nil {
		return err
	}

	var log *logger.Logger
	if cfg.OpenLog {
		log, err = logger.New(logger.Options{
			Level:     logger.Level(cfg.LogLevel),
			Dir:       "./log",
			QueueSize: cfg.LogQueSize,
			Console:   true,
		})
	} else {
		log, err = logger.New(logger.Options{Level: logger.FatalLevel + 1, Dir: "./log"})
	}
	if err != nil {
		return err
	}
	defer log.Close()

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go srv.Run()
	<-quit

	log.Info("shutting down")
	srv.Shutdown()
	return nil
}
