package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	// API define cómo alcanzar el backend RBAC.
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`

	// Session define dónde persiste la credencial de la sesión entre
	// invocaciones de la CLI.
	Session struct {
		Store string `yaml:"store"` // file | memory | redis
		File  struct {
			Path string `yaml:"path"` // default: ~/.rbacadm/session.json
		} `yaml:"file"`
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	// Cache controla el snapshot local de listas de usuarios/roles.
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`

	// DevServer configura el backend de referencia embebido.
	DevServer struct {
		Addr string `yaml:"addr"`
		Rate struct {
			Login struct {
				Limit  int    `yaml:"limit"`
				Window string `yaml:"window"`
			} `yaml:"login"`
		} `yaml:"rate"`
		Seed struct {
			AdminEmail    string `yaml:"admin_email"`
			AdminPassword string `yaml:"admin_password"`
		} `yaml:"seed"`
	} `yaml:"devserver"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "30s"
	}
	if c.Session.Store == "" {
		c.Session.Store = "file"
	}
	if c.Session.File.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Session.File.Path = filepath.Join(home, ".rbacadm", "session.json")
	}
	if c.Session.Redis.Port == 0 {
		c.Session.Redis.Port = 6379
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "rbacadm"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "2m"
	}
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = ":8080"
	}
	if c.DevServer.Rate.Login.Limit == 0 {
		c.DevServer.Rate.Login.Limit = 10
	}
	if c.DevServer.Rate.Login.Window == "" {
		c.DevServer.Rate.Login.Window = "1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Overrides por env
	c.applyEnvOverrides()

	// validate string durations
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return nil, fmt.Errorf("config: api.timeout inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return nil, fmt.Errorf("config: cache.ttl inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.DevServer.Rate.Login.Window); err != nil {
		return nil, fmt.Errorf("config: devserver.rate.login.window inválido: %w", err)
	}

	return &c, nil
}

// APITimeout retorna api.timeout ya parseado. Load() valida el string.
func (c *Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// CacheTTL retorna cache.ttl ya parseado.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RBACADM_API_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := getEnvStr("RBACADM_API_TIMEOUT"); ok {
		c.API.Timeout = v
	}
	if v, ok := getEnvStr("RBACADM_SESSION_STORE"); ok {
		c.Session.Store = v
	}
	if v, ok := getEnvStr("RBACADM_SESSION_FILE"); ok {
		c.Session.File.Path = v
	}
	if v, ok := getEnvStr("RBACADM_REDIS_HOST"); ok {
		c.Session.Redis.Host = v
	}
	if v, ok := getEnvInt("RBACADM_REDIS_PORT"); ok {
		c.Session.Redis.Port = v
	}
	if v, ok := getEnvStr("RBACADM_REDIS_PASSWORD"); ok {
		c.Session.Redis.Password = v
	}
	if v, ok := getEnvInt("RBACADM_REDIS_DB"); ok {
		c.Session.Redis.DB = v
	}
	if v, ok := getEnvStr("DEVSERVER_ADDR"); ok {
		c.DevServer.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}
