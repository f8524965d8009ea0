package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string        `mapstructure:"host"`
		Address         string        `mapstructure:"address"`
		DebugHost       string        `mapstructure:"debugHost"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
		DisableReqLogs  bool          `mapstructure:"disableReqLogs"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          int    `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	LedgerConfig struct {
		DefaultMonthlyCap decimal.Decimal `mapstructure:"-"`
		Timezone          string          `mapstructure:"timezone"`
	}

	ReminderConfig struct {
		Enabled         bool     `mapstructure:"enabled"`
		CronSpec        string   `mapstructure:"cronSpec"`
		DigestCronSpec  string   `mapstructure:"digestCronSpec"`
		Language        string   `mapstructure:"language"`
		SecretaryEmails []string `mapstructure:"secretaryEmails"`
	}

	Config struct {
		Debug    bool   `mapstructure:"debug"`
		TestMode bool   `mapstructure:"testMode"`
		Env      string `mapstructure:"-"`
		Build    string `mapstructure:"build"`
		WorkDir  string `mapstructure:"-"`
		AppName  string `mapstructure:"appName"`
		LogLevel string `mapstructure:"logLevel"`

		RollbarToken     string `mapstructure:"rollbarToken"`
		SendgridApiKey   string `mapstructure:"sendgridApiKey"`
		DefaultFromEmail string `mapstructure:"defaultFromEmail"`

		Server    ServerConfig   `mapstructure:"server"`
		Database  DatabaseConfig `mapstructure:"database"`
		Ledger    LedgerConfig   `mapstructure:"ledger"`
		Reminders ReminderConfig `mapstructure:"reminders"`
	}
)

func (conf DatabaseConfig) Address() string {
	return net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
}

func (conf *Config) DefaultFromAddress() mail.Address {
	addr, err := mail.ParseAddress(conf.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

// Location returns the organization's time zone; UTC when it cannot be loaded.
func (conf *Config) Location() *time.Location {
	loc, err := time.LoadLocation(conf.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Simchat Zion")
	v.SetDefault("logLevel", "info")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Simchat Zion <noreply@localhost>")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.user", "ledger")
	v.SetDefault("database.password", "ledger")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("ledger.defaultMonthlyCap", "720")
	v.SetDefault("ledger.timezone", "Asia/Jerusalem")

	v.SetDefault("reminders.enabled", false)
	v.SetDefault("reminders.cronSpec", "0 9 1 * *")
	v.SetDefault("reminders.digestCronSpec", "0 9 16 * *")
	v.SetDefault("reminders.language", "he")
	v.SetDefault("reminders.secretaryEmails", []string{})
}

// NewConfig loads the configuration from the environment, `config/.env.<env>` is loaded first if it exists.
// ENV: DEV (local; default), TEST, QA, PROD
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	conf.WorkDir = workDir

	monthlyCap, err := decimal.NewFromString(v.GetString("ledger.defaultMonthlyCap"))
	if err != nil || !monthlyCap.IsPositive() {
		log.Print(fmt.Errorf("config: invalid ledger.defaultMonthlyCap %q, using 720", v.GetString("ledger.defaultMonthlyCap")))
		monthlyCap = decimal.NewFromInt(720)
	}
	conf.Ledger.DefaultMonthlyCap = monthlyCap

	// comma separated in env files
	var secretaries []string
	for _, entry := range conf.Reminders.SecretaryEmails {
		for _, e := range strings.Split(entry, ",") {
			if e = CleanString(e, true /* lower */); e != "" {
				secretaries = append(secretaries, e)
			}
		}
	}
	conf.Reminders.SecretaryEmails = secretaries
	return conf
}

// NewTestConfig returns a Config suitable for tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Simchat Zion",
		LogLevel:         "error",
		DefaultFromEmail: "Simchat Zion <noreply@localhost>",
		Server: ServerConfig{
			Host:            "localhost",
			ShutdownTimeout: time.Second,
			DisableReqLogs:  true,
		},
		Ledger: LedgerConfig{
			DefaultMonthlyCap: decimal.NewFromInt(720),
			Timezone:          "UTC",
		},
		Reminders: ReminderConfig{
			CronSpec:       "0 9 1 * *",
			DigestCronSpec: "0 9 16 * *",
			Language:       "he",
		},
	}
}
