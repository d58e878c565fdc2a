// Package config loads server and CLI settings from defaults, an optional
// payroll.yaml and PAYROLL_* environment variables, in rising priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal containers

	"github.com/spf13/viper"

	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
)

const envPrefix = "PAYROLL"

type Config struct {
	Env      string
	HTTP     HTTPConfig
	Database DatabaseConfig
	Log      logging.Config
	Payroll  PayrollConfig
	Payslip  PayslipConfig
}

type HTTPConfig struct {
	Port            string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type DatabaseConfig struct {
	Path string // SQLite file, or ":memory:"
}

type PayrollConfig struct {
	Proration      payroll.Proration
	StrictChecksum bool
	MaxSuggestions int

	// Timezone is the IANA zone attendance check-ins are dated in.
	Timezone string
	Location *time.Location
}

type PayslipConfig struct {
	// FontPath is a UTF-8 TrueType font for non-Latin names. Empty uses
	// the PDF core font.
	FontPath string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20)
	v.SetDefault("db.path", "./data/payroll.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("payroll.proration", string(payroll.ProrateDaily))
	v.SetDefault("payroll.strict_checksum", false)
	v.SetDefault("payroll.max_suggestions", 3)
	v.SetDefault("payroll.timezone", "Asia/Seoul")
	v.SetDefault("payslip.font", "")
}

// Load reads configuration. path names a config file that must exist;
// empty searches for payroll.yaml in . and ./config, and a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("payroll")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Short names for the settings operators touch most.
	_ = v.BindEnv("payroll.proration", envPrefix+"_PRORATION")
	_ = v.BindEnv("payroll.strict_checksum", envPrefix+"_STRICT_CHECKSUM")
	_ = v.BindEnv("http.cors_origins", envPrefix+"_CORS_ORIGINS")
	_ = v.BindEnv("payslip.font", envPrefix+"_PDF_FONT")
	_ = v.BindEnv("payroll.timezone", envPrefix+"_TZ")

	cfg := &Config{
		Env: v.GetString("env"),
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			CORSOrigins:     splitList(v.Get("http.cors_origins")),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxBodyBytes:    v.GetInt64("http.max_body_bytes"),
		},
		Database: DatabaseConfig{Path: v.GetString("db.path")},
		Log: logging.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Payroll: PayrollConfig{
			Proration:      payroll.Proration(v.GetString("payroll.proration")),
			StrictChecksum: v.GetBool("payroll.strict_checksum"),
			MaxSuggestions: v.GetInt("payroll.max_suggestions"),
			Timezone:       v.GetString("payroll.timezone"),
		},
		Payslip: PayslipConfig{FontPath: v.GetString("payslip.font")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return errors.New("config: http.port is required")
	}
	if c.Database.Path == "" {
		return errors.New("config: db.path is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	if !c.Payroll.Proration.Valid() {
		return fmt.Errorf("config: payroll.proration must be %q or %q, got %q",
			payroll.ProrateDaily, payroll.ProrateCalendarMonths, c.Payroll.Proration)
	}
	if c.Payroll.MaxSuggestions < 0 {
		return errors.New("config: payroll.max_suggestions must not be negative")
	}
	loc, err := time.LoadLocation(c.Payroll.Timezone)
	if err != nil {
		return fmt.Errorf("config: payroll.timezone: %w", err)
	}
	c.Payroll.Location = loc
	return nil
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }

// splitList accepts a YAML list or a comma-separated env value.
func splitList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	case string:
		items = strings.Split(v, ",")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
