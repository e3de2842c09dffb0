// Copyright 2025 Stagecraft Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"fmt"
	"time"
)

// Supported database drivers.
const (
	DriverSqlite = "sqlite"
	DriverMySQL  = "mysql"
)

// dataTablePrefix is prepended to every table name.
const dataTablePrefix = "t_"

const (
	defaultMaxOpenConns = 50
	defaultMaxIdleConns = 10
	defaultMaxLifetime  = 3600 // seconds
	defaultMaxIdleTime  = 600  // seconds
)

// Database holds the persistence settings. Sqlite serves single-node
// deployments and tests, MySQL serves production.
type Database struct {
	Driver       string       `mapstructure:"driver" json:"driver" yaml:"driver"`
	Sqlite       SqliteConfig `mapstructure:"sqlite" json:"sqlite" yaml:"sqlite"`
	MySQL        MySQLConfig  `mapstructure:"mysql" json:"mysql" yaml:"mysql"`
	MaxOpenConns int          `mapstructure:"max_open_conns" json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int          `mapstructure:"max_idle_conns" json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxLifetime  int          `mapstructure:"max_lifetime" json:"max_lifetime" yaml:"max_lifetime"`
	MaxIdleTime  int          `mapstructure:"max_idle_time" json:"max_idle_time" yaml:"max_idle_time"`
	// OutPut enables SQL statement logging through the engine logger.
	OutPut bool `mapstructure:"output" json:"output" yaml:"output"`
}

// SqliteConfig holds sqlite file settings.
type SqliteConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// MySQLConfig holds MySQL connection settings. Primary and Replicas
// enable read-write separation through dbresolver.
type MySQLConfig struct {
	Host     string   `mapstructure:"host" json:"host" yaml:"host"`
	Port     int      `mapstructure:"port" json:"port" yaml:"port"`
	User     string   `mapstructure:"user" json:"user" yaml:"user"`
	Password string   `mapstructure:"password" json:"password" yaml:"password"`
	DBName   string   `mapstructure:"db_name" json:"db_name" yaml:"db_name"`
	Primary  []string `mapstructure:"primary" json:"primary" yaml:"primary"`
	Replicas []string `mapstructure:"replicas" json:"replicas" yaml:"replicas"`
}

// SetDefaults fills missing settings with sane defaults.
func (c *Database) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSqlite
	}
	if c.Sqlite.Path == "" {
		c.Sqlite.Path = "stagecraft.db"
	}
	if c.MySQL.Port == 0 {
		c.MySQL.Port = 3306
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = defaultMaxLifetime
	}
	if c.MaxIdleTime == 0 {
		c.MaxIdleTime = defaultMaxIdleTime
	}
}

// Validate checks the settings are usable.
func (c *Database) Validate() error {
	switch c.Driver {
	case DriverSqlite:
		if c.Sqlite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DriverMySQL:
		if c.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if c.MySQL.User == "" {
			return fmt.Errorf("mysql user is required")
		}
		if c.MySQL.DBName == "" {
			return fmt.Errorf("mysql db_name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Driver)
	}
	return nil
}

// buildMySQLDSN builds a gorm MySQL DSN.
func buildMySQLDSN(user, password, host string, port int, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbName)
}

// GetConnMaxLifetime converts the configured lifetime seconds to a duration.
func GetConnMaxLifetime(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Duration(defaultMaxLifetime) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// GetConnMaxIdleTime converts the configured idle seconds to a duration.
func GetConnMaxIdleTime(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Duration(defaultMaxIdleTime) * time.Second
	}
	return time.Duration(seconds) * time.Second
}
