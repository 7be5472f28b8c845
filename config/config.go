/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Authors:
 *	- Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package config

import (
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/wtsi-hgi/mavescore/store"
)

const (
	EnvVarDriver   = "MAVESCORE_STORE_DRIVER"
	EnvVarDSN      = "MAVESCORE_STORE_DSN"
	EnvVarLogLevel = "MAVESCORE_LOG_LEVEL"
	EnvVarUser     = "MAVESCORE_SQL_USER"
	EnvVarPass     = "MAVESCORE_SQL_PASS"
	EnvVarHost     = "MAVESCORE_SQL_HOST"
	EnvVarPort     = "MAVESCORE_SQL_PORT"
	EnvVarDBName   = "MAVESCORE_SQL_DB"

	sqlNetwork = "tcp"

	defaultLogLevel  = "info"
	defaultStorePath = "mavescore.db"
)

type Error string

func (e Error) Error() string { return string(e) }

const ErrMissingEnvs = Error("missing required environment variables")

type Config struct {
	StoreDriver string
	StoreDSN    string
	LogLevel    string
	User        string
	Password    string
	Host        string
	Port        string
	DBName      string
}

// FromEnv returns a new Config with properties populated from environment
// variables MAVESCORE_*, where * is amongst: STORE_DRIVER, STORE_DSN,
// LOG_LEVEL, SQL_USER, SQL_PASS, SQL_HOST, SQL_PORT, and SQL_DB.
//
// If these environment variables are defined in a file called .env (and not
// previously set in an environment variable), they will be automatically
// loaded.
//
// The store driver defaults to sqlite with a database file in the working
// directory; a mysql driver needs either a full DSN or all of the SQL_*
// variables.
//
// Optionally supply a directory to look for the .env file in.
func FromEnv(dir ...string) (*Config, error) {
	var parentDir string
	if len(dir) == 1 {
		parentDir = dir[0] + string(os.PathSeparator)
	}

	godotenv.Load(parentDir + ".env")

	c := &Config{
		StoreDriver: envOr(EnvVarDriver, store.DriverSQLite),
		StoreDSN:    os.Getenv(EnvVarDSN),
		LogLevel:    envOr(EnvVarLogLevel, defaultLogLevel),
		User:        os.Getenv(EnvVarUser),
		Password:    os.Getenv(EnvVarPass),
		Host:        os.Getenv(EnvVarHost),
		Port:        os.Getenv(EnvVarPort),
		DBName:      os.Getenv(EnvVarDBName),
	}

	if c.StoreDriver != store.DriverSQLite && c.StoreDriver != store.DriverMySQL {
		return nil, store.ErrUnknownDriver
	}

	if c.StoreDSN == "" {
		if err := c.defaultDSN(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func (c *Config) defaultDSN() error {
	if c.StoreDriver == store.DriverSQLite {
		c.StoreDSN = defaultStorePath

		return nil
	}

	if c.User == "" || c.Password == "" || c.Host == "" || c.Port == "" || c.DBName == "" {
		return ErrMissingEnvs
	}

	c.StoreDSN = c.mySQLConfig().FormatDSN()

	return nil
}

func (c *Config) mySQLConfig() *mysql.Config {
	conf := mysql.NewConfig()
	conf.User = c.User
	conf.Passwd = c.Password
	conf.Net = sqlNetwork
	conf.Addr = c.Host + ":" + c.Port
	conf.DBName = c.DBName

	return conf
}

// OpenStore opens the table store described by the config.
func (c *Config) OpenStore() (*store.Store, error) {
	return store.Open(c.StoreDriver, c.StoreDSN)
}
