// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package config loads the authscope configuration file.
//
// Values come from a YAML file, validated against the schema reflected from
// File, with command-line flags layered on top.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/xdg"
)

// Defaults for values not present in the file.
const (
	DefaultWebAddr      = "127.0.0.1:3000"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultBaseURL      = "http://localhost:3000"
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultRedisPrefix  = "authscope:session"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultMailProvider = "log"
	DefaultLogFormat    = "json"
)

// Scope configures one authentication scope. Zero values keep the
// defaults derived from the scope name.
type Scope struct {
	Name                string        `koanf:"name" json:"name" jsonschema:"pattern=^[a-z][a-z0-9_]*$"`
	Model               string        `koanf:"model" json:"model" jsonschema:"minLength=1"`
	SessionKey          string        `koanf:"session_key" json:"session_key,omitempty"`
	RememberCookie      string        `koanf:"remember_cookie" json:"remember_cookie,omitempty"`
	RememberFor         time.Duration `koanf:"remember_for" json:"remember_for,omitempty"`
	PasswordResetWithin time.Duration `koanf:"password_reset_within" json:"password_reset_within,omitempty"`
	SignInPath          string        `koanf:"sign_in_path" json:"sign_in_path,omitempty"`
	AfterSignInPath     string        `koanf:"after_sign_in_path" json:"after_sign_in_path,omitempty"`
	Layout              string        `koanf:"layout" json:"layout,omitempty"`
	PasswordMinimum     int           `koanf:"password_minimum" json:"password_minimum,omitempty" jsonschema:"minimum=1"`
}

// Cookie is the process-wide remember cookie policy.
type Cookie struct {
	Secure   bool   `koanf:"secure" json:"secure,omitempty"`
	HTTPOnly bool   `koanf:"http_only" json:"http_only,omitempty"`
	SameSite string `koanf:"same_site" json:"same_site,omitempty" jsonschema:"enum=strict,enum=lax,enum=none"`
}

// Database selects the principal store.
type Database struct {
	// URL is a postgres:// or sqlite:// URL. Empty means the SQLite
	// database under the XDG data directory.
	URL         string `koanf:"url" json:"url,omitempty"`
	AutoMigrate bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// Redis configures the HTTP session store.
type Redis struct {
	Addr       string        `koanf:"addr" json:"addr,omitempty"`
	Prefix     string        `koanf:"prefix" json:"prefix,omitempty"`
	SessionTTL time.Duration `koanf:"session_ttl" json:"session_ttl,omitempty"`
}

// Web configures the HTTP listeners.
type Web struct {
	Addr         string `koanf:"addr" json:"addr,omitempty"`
	MetricsAddr  string `koanf:"metrics_addr" json:"metrics_addr,omitempty"`
	BaseURL      string `koanf:"base_url" json:"base_url,omitempty"`
	CookieSecret string `koanf:"cookie_secret" json:"cookie_secret,omitempty" jsonschema:"minLength=32"`
}

// Mail selects how password-reset mail is delivered.
type Mail struct {
	Provider string `koanf:"provider" json:"provider,omitempty" jsonschema:"enum=log,enum=ses"`
	From     string `koanf:"from" json:"from,omitempty"`
	Region   string `koanf:"region" json:"region,omitempty"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// File is the top-level configuration document.
type File struct {
	Scopes   []Scope  `koanf:"scopes" json:"scopes" jsonschema:"minItems=1"`
	Cookie   Cookie   `koanf:"cookie" json:"cookie,omitempty"`
	Database Database `koanf:"database" json:"database,omitempty"`
	Redis    Redis    `koanf:"redis" json:"redis,omitempty"`
	Web      Web      `koanf:"web" json:"web,omitempty"`
	Mail     Mail     `koanf:"mail" json:"mail,omitempty"`
	Log      Log      `koanf:"log" json:"log,omitempty"`
}

// Default returns a File holding every default except scopes.
func Default() File {
	policy := scope.DefaultCookiePolicy()
	return File{
		Cookie: Cookie{
			Secure:   policy.Secure,
			HTTPOnly: policy.HTTPOnly,
			SameSite: string(policy.SameSite),
		},
		Redis: Redis{
			Addr:       DefaultRedisAddr,
			Prefix:     DefaultRedisPrefix,
			SessionTTL: DefaultSessionTTL,
		},
		Web: Web{
			Addr:        DefaultWebAddr,
			MetricsAddr: DefaultMetricsAddr,
			BaseURL:     DefaultBaseURL,
		},
		Mail: Mail{Provider: DefaultMailProvider},
		Log:  Log{Format: DefaultLogFormat},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":  "database.url",
	"auto-migrate":  "database.auto_migrate",
	"redis-addr":    "redis.addr",
	"web-addr":      "web.addr",
	"metrics-addr":  "web.metrics_addr",
	"base-url":      "web.base_url",
	"log-format":    "log.format",
	"mail-provider": "mail.provider",
}

// FlagKey returns the configuration key a flag overrides.
func FlagKey(flag string) (string, bool) {
	key, ok := flagKeys[flag]
	return key, ok
}

// DefaultPath returns the configuration file under the XDG config directory.
func DefaultPath() (string, error) {
	return xdg.ConfigFile()
}

// Load reads the file at path, validates it and applies changed flags from
// flags. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := "CONFIG_READ_FAILED"
		if errors.Is(err, fs.ErrNotExist) {
			code = "CONFIG_NOT_FOUND"
		}
		return nil, oops.Code(code).With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
	}
	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	f := Default()
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return &f, nil
}

// DatabaseURL returns the configured database URL, falling back to the
// SQLite database under the XDG data directory.
func (f *File) DatabaseURL() (string, error) {
	if f.Database.URL != "" {
		return f.Database.URL, nil
	}
	path, err := xdg.DefaultSQLitePath()
	if err != nil {
		return "", err
	}
	return "sqlite://" + path, nil
}

// Models returns the record types referenced by the configured scopes.
func (f *File) Models() []string {
	seen := make(map[string]bool, len(f.Scopes))
	models := make([]string, 0, len(f.Scopes))
	for _, s := range f.Scopes {
		if s.Model == "" || seen[s.Model] {
			continue
		}
		seen[s.Model] = true
		models = append(models, s.Model)
	}
	return models
}

// Apply registers every scope and the cookie policy on reg, then validates
// the registry.
func (f *File) Apply(reg *scope.Registry) error {
	if reg == nil {
		return oops.Code("CONFIG_REGISTRY_REQUIRED").
			Wrapf(scope.ErrInvalidArgument, "scope registry is required")
	}

	policy := scope.DefaultCookiePolicy()
	policy.Secure = f.Cookie.Secure
	policy.HTTPOnly = f.Cookie.HTTPOnly
	if f.Cookie.SameSite != "" {
		sameSite, err := scope.ParseSameSite(f.Cookie.SameSite)
		if err != nil {
			return err
		}
		policy.SameSite = sameSite
	}

	for _, s := range f.Scopes {
		if err := reg.Scope(scope.Name(s.Name), s.configure); err != nil {
			return err
		}
	}
	reg.SetCookiePolicy(policy)
	return reg.Validate()
}

func (s Scope) configure(c *scope.Config) {
	c.Model = s.Model
	setString(&c.SessionKey, s.SessionKey)
	setString(&c.RememberCookie, s.RememberCookie)
	setString(&c.SignInPath, s.SignInPath)
	setString(&c.AfterSignInPath, s.AfterSignInPath)
	setString(&c.Layout, s.Layout)
	if s.RememberFor > 0 {
		c.RememberFor = s.RememberFor
	}
	if s.PasswordResetWithin > 0 {
		c.PasswordResetWithin = s.PasswordResetWithin
	}
	if s.PasswordMinimum > 0 {
		c.PasswordMinimum = s.PasswordMinimum
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
