package buildCFG

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"masterclass/internal/mailer"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	SessionSecret string
	AdminUsername string
	AdminPassword string
	SessionTTL    time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		masterDSN = os.Getenv("DATABASE_URL")
	}
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn (or DATABASE_URL) is required")
	}

	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("db.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("db.max_idle_conns"),
		ConnMaxLifetime: time.Duration(cfg.GetInt("db.conn_max_lifetime_minutes")) * time.Minute,
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("database configuration loaded")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" {
		return rc, fmt.Errorf("rabbit.url is required")
	}
	if rc.Exchange == "" {
		rc.Exchange = "tickets"
	}
	if rc.Queue == "" {
		rc.Queue = "ticket_delivery"
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit configuration loaded")
	return rc, nil
}

// BuildMailConfig reads the SMTP settings. The password comes from the
// environment only.
func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) (mailer.Config, error) {
	mc := mailer.Config{
		Host:     cfg.GetString("mail.host"),
		Port:     cfg.GetInt("mail.port"),
		Username: cfg.GetString("mail.username"),
		Password: os.Getenv("MAIL_PASSWORD"),
		From:     cfg.GetString("mail.from"),
	}
	if mc.Host == "" {
		return mc, fmt.Errorf("mail.host is required")
	}
	if mc.Port == 0 {
		mc.Port = 587
	}
	if mc.From == "" {
		mc.From = mc.Username
	}
	if mc.Password == "" {
		log.Warn().Msg("MAIL_PASSWORD is not set, ticket emails will fail to authenticate")
	}
	return mc, nil
}

// BuildAuthConfig requires every credential from the environment.
// There are deliberately no fallback values.
func BuildAuthConfig(cfg *config.Config) (AuthConfig, error) {
	ac := AuthConfig{
		SessionSecret: os.Getenv("SESSION_SECRET"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if ac.SessionSecret == "" {
		return ac, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	if ac.AdminUsername == "" || ac.AdminPassword == "" {
		return ac, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD environment variables are required")
	}

	ttlMinutes := cfg.GetInt("auth.session_ttl_minutes")
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	ac.SessionTTL = time.Duration(ttlMinutes) * time.Minute
	return ac, nil
}

func BuildUploadConfig(cfg *config.Config, log *zerolog.Logger) UploadConfig {
	uc := UploadConfig{
		Dir:      cfg.GetString("upload.dir"),
		MaxBytes: int64(cfg.GetInt("upload.max_bytes")),
	}
	if uc.Dir == "" {
		uc.Dir = "uploads"
	}
	if uc.MaxBytes <= 0 {
		uc.MaxBytes = 16 << 20
	}
	log.Info().Str("dir", uc.Dir).Int64("max_bytes", uc.MaxBytes).Msg("upload configuration loaded")
	return uc
}
