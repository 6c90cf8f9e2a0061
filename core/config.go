package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all process-wide configuration. It is loaded once at startup
// and read-only afterwards; the token secrets in particular must never be
// mutated while requests are in flight.
type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string

	Server struct {
		Address         string
		ShutdownTimeout time.Duration
	}

	// Token signing. Access and refresh tokens use independent secrets so
	// that possession of one cannot forge the other.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	Database struct {
		URI  string
		Name string
	}

	RollbarToken     string
	SendgridAPIKey   string
	DefaultFromEmail mail.Address
	Build            string
}

// NewConfig loads configuration from the environment, with an optional
// config/.env.<env> dotenv file for local development.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Shule")
	v.SetDefault("address", ":8000")
	v.SetDefault("shutdownTimeout", 20*time.Second)
	v.SetDefault("accessTokenSecret", "9m4&yb3!_0^+7b$p(x&=5h2-l%_wzd&1y#f+q0o8j#t!u6r@vk")
	v.SetDefault("refreshTokenSecret", "x#v2(q_j8&z!0r7m=t%+b5p9^l$y4-w&h1o@u6d3f)k0s8a2ng")
	v.SetDefault("accessTokenTTL", time.Hour)
	v.SetDefault("refreshTokenTTL", 7*24*time.Hour)
	v.SetDefault("databaseURI", "mongodb://localhost:27017")
	v.SetDefault("databaseName", "shule")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		Env:                env,
		AppName:            v.GetString("appName"),
		AccessTokenSecret:  v.GetString("accessTokenSecret"),
		RefreshTokenSecret: v.GetString("refreshTokenSecret"),
		AccessTokenTTL:     v.GetDuration("accessTokenTTL"),
		RefreshTokenTTL:    v.GetDuration("refreshTokenTTL"),
		RollbarToken:       v.GetString("rollbarToken"),
		SendgridAPIKey:     v.GetString("sendgridApiKey"),
		DefaultFromEmail:   mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		Build:              v.GetString("build"),
	}
	conf.Server.Address = v.GetString("address")
	conf.Server.ShutdownTimeout = v.GetDuration("shutdownTimeout")
	conf.Database.URI = v.GetString("databaseURI")
	conf.Database.Name = v.GetString("databaseName")
	return conf, nil
}

// NewTestConfig returns a Config suitable for tests: test mode on, short
// token lifetimes and fixed secrets.
func NewTestConfig() *Config {
	conf := &Config{
		Debug:              false,
		TestMode:           true,
		Env:                "TEST",
		AppName:            "Shule",
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		DefaultFromEmail:   mail.Address{Name: "Shule", Address: "noreply@localhost"},
	}
	conf.Server.ShutdownTimeout = time.Second
	return conf
}
