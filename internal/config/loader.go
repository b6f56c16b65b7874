package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/room-booking/internal/timezone"
)

const envPrefix = "ROOMBOOKING_"

// DefaultSQLiteDSN points at a database file in the working directory.
const DefaultSQLiteDSN = "file:roombooking.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort       int
	DatabaseDriver string
	DatabaseDSN    string
	SessionSecret  string
	SessionTTL     time.Duration
	Timezone       string
	Environment    string

	AMQPURL   string
	AMQPQueue string

	TelegramToken  string
	TelegramChatID int64

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads the given .env files (".env" when none are named) into the
// process environment and then parses it. Missing files are ignored and
// variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("carregar %s: %w", file, err)
		}
	}
	return FromEnv()
}

// FromEnv parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; required and malformed values are
// collected so a single error names every offending variable.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    DefaultSQLiteDSN,
		SessionTTL:     24 * time.Hour,
		Timezone:       timezone.DefaultName,
		Environment:    "development",
		AMQPQueue:      "booking.events",
	}

	var missing, invalid []string

	if portValue := lookup("HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	dsn := lookup("DB_DSN")
	if driver := strings.ToLower(lookup("DB_DRIVER")); driver != "" {
		switch driver {
		case "sqlite", "postgres":
			cfg.DatabaseDriver = driver
		default:
			invalid = append(invalid, envPrefix+"DB_DRIVER")
		}
	}
	switch {
	case dsn != "":
		cfg.DatabaseDSN = dsn
	case cfg.DatabaseDriver == "postgres":
		missing = append(missing, envPrefix+"DB_DSN")
	}

	if secret := lookup("SESSION_SECRET"); secret == "" {
		missing = append(missing, envPrefix+"SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := lookup("SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, envPrefix+"SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := lookup("TIMEZONE"); tz != "" {
		if _, err := timezone.Load(tz); err != nil {
			invalid = append(invalid, envPrefix+"TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if env := lookup("ENV"); env != "" {
		cfg.Environment = strings.ToLower(env)
	}

	cfg.AMQPURL = lookup("AMQP_URL")
	if queue := lookup("AMQP_QUEUE"); queue != "" {
		cfg.AMQPQueue = queue
	}

	cfg.TelegramToken = lookup("TELEGRAM_TOKEN")
	if chatValue := lookup("TELEGRAM_CHAT_ID"); chatValue != "" {
		chatID, err := strconv.ParseInt(chatValue, 10, 64)
		if err != nil {
			invalid = append(invalid, envPrefix+"TELEGRAM_CHAT_ID")
		} else {
			cfg.TelegramChatID = chatID
		}
	} else if cfg.TelegramToken != "" {
		missing = append(missing, envPrefix+"TELEGRAM_CHAT_ID")
	}

	cfg.BootstrapAdminEmail = lookup("ADMIN_EMAIL")
	cfg.BootstrapAdminPassword = os.Getenv(envPrefix + "ADMIN_PASSWORD")
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword == "" {
		missing = append(missing, envPrefix+"ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente obrigatórias ausentes: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente com valor inválido: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// TelegramEnabled reports whether chat notifications are configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func lookup(suffix string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + suffix))
}
