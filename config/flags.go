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

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags registers every Config field as a persistent flag on cmd and
// binds it into v, so command-line flags take priority over a config file
// or environment variable of the same name.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	def := Default()

	flags := cmd.PersistentFlags()
	flags.Int("port", def.Port, "listen port (1024-65535)")
	flags.Int("trig-mode", int(def.TrigMode), "trigger mode: 0 both LT, 1 conn ET, 2 listen ET, 3 both ET")
	flags.Int("timeout-ms", def.TimeoutMs, "idle connection timeout in ms, 0 disables timers")
	flags.Bool("open-linger", def.OpenLinger, "enable SO_LINGER on the listening socket")
	flags.Int("thread-num", def.ThreadNum, "fixed worker thread pool size")

	flags.String("sql-host", def.SQLHost, "database host")
	flags.Int("sql-port", def.SQLPort, "database port")
	flags.String("sql-user", "", "database user")
	flags.String("sql-pwd", "", "database password")
	flags.String("db-name", "", "database name")
	flags.Int("sql-conn-num", def.SQLConnNum, "DB connection pool size")
	flags.String("sql-driver", def.SQLDriver, "DB driver: mysql or sqlite")

	flags.Bool("open-log", def.OpenLog, "enable logging")
	flags.Int("log-level", def.LogLevel, "log level: 0 debug, 1 info, 2 warn, 3 error")
	flags.Int("log-que-size", def.LogQueSize, "async log queue size, 0 for synchronous")

	flags.String("src-dir", def.SrcDir, "static file root directory")

	for _, name := range []string{
		"port", "trig_mode", "timeout_ms", "open_linger", "thread_num",
		"sql_host", "sql_port", "sql_user", "sql_pwd", "db_name", "sql_conn_num", "sql_driver",
		"open_log", "log_level", "log_que_size", "src_dir",
	} {
		_ = v.BindPFlag(name, flags.Lookup(flagName(name)))
	}
}

// flagName converts a snake_case viper key to the kebab-case flag it was
// registered under above.
func flagName(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '_' {
			out = append(out, '-')
		} else {
			out = append(out, key[i])
		}
	}
	return string(out)
}
