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

type (
	ServerConfig struct {
		Address         string        `mapstructure:"address"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	}

	DatabaseConfig struct {
		URL             string        `mapstructure:"url"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	}

	MinIOConfig struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	}

	StorageConfig struct {
		Provider          string      `mapstructure:"provider"` // local | minio
		UploadDir         string      `mapstructure:"upload_dir"`
		AllowedExtensions []string    `mapstructure:"allowed_extensions"`
		MinIO             MinIOConfig `mapstructure:"minio"`
	}

	SessionConfig struct {
		Store        string        `mapstructure:"store"` // memory | redis
		RedisAddr    string        `mapstructure:"redis_addr"`
		Lifetime     time.Duration `mapstructure:"lifetime"`
		CookieName   string        `mapstructure:"cookie_name"`
		SecureCookie bool          `mapstructure:"secure_cookie"`
	}

	SecurityConfig struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	}

	LogConfig struct {
		Level  string `mapstructure:"level"`
		File   string `mapstructure:"file"`
		Pretty bool   `mapstructure:"pretty"`
	}

	EmailConfig struct {
		From           string `mapstructure:"from"`
		SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	}

	EventsConfig struct {
		AMQPURL  string `mapstructure:"amqp_url"`
		Exchange string `mapstructure:"exchange"`
	}

	BootstrapConfig struct {
		AdminEmail    string `mapstructure:"admin_email"`
		AdminPassword string `mapstructure:"admin_password"`
		AdminName     string `mapstructure:"admin_name"`
	}

	Config struct {
		Env          string          `mapstructure:"env"`
		Debug        bool            `mapstructure:"debug"`
		TestMode     bool            `mapstructure:"test_mode"`
		AppName      string          `mapstructure:"app_name"`
		Build        string          `mapstructure:"build"`
		SecretKey    string          `mapstructure:"secret_key"`
		RollbarToken string          `mapstructure:"rollbar_token"`
		Server       ServerConfig    `mapstructure:"server"`
		Database     DatabaseConfig  `mapstructure:"database"`
		Storage      StorageConfig   `mapstructure:"storage"`
		Session      SessionConfig   `mapstructure:"session"`
		Security     SecurityConfig  `mapstructure:"security"`
		Log          LogConfig       `mapstructure:"log"`
		Email        EmailConfig     `mapstructure:"email"`
		Events       EventsConfig    `mapstructure:"events"`
		Bootstrap    BootstrapConfig `mapstructure:"bootstrap"`
	}
)

// NewConfig reads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with PORTAL_, eg. PORTAL_DATABASE_URL.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToLower(os.Getenv("ENV")) // dev (local; default), test, qa, prod
	if env == "" {
		env = "dev"
	}
	v.Set("env", env)
	switch env {
	case "test":
		v.SetDefault("test_mode", true)
		v.SetDefault("security.bcrypt_cost", 4)
	case "qa", "prod":
		v.SetDefault("debug", false)
		v.SetDefault("log.pretty", false)
		v.SetDefault("session.secure_cookie", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	v.SetEnvPrefix("portal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	for i, ext := range conf.Storage.AllowedExtensions {
		conf.Storage.AllowedExtensions[i] = CleanString(strings.TrimPrefix(CleanString(ext), "."), true /* lower */)
	}
	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "Student Portal")
	v.SetDefault("build", "dev")
	v.SetDefault("secret_key", "dev-secret-key-change-in-production")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_size", 16*1024*1024) // 16MiB

	v.SetDefault("database.url", "sqlite3://portal.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.upload_dir", filepath.Join("static", "uploads"))
	v.SetDefault("storage.allowed_extensions", []string{"pdf", "doc", "docx"})
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "minioadmin")
	v.SetDefault("storage.minio.secret_key", "minioadmin")
	v.SetDefault("storage.minio.bucket", "portal-assignments")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.lifetime", time.Hour)
	v.SetDefault("session.cookie_name", "portal_session")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.pretty", true)

	v.SetDefault("email.from", "Student Portal <noreply@localhost>")
	v.SetDefault("email.sendgrid_api_key", "")

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "portal.events")

	v.SetDefault("bootstrap.admin_email", "admin@student-portal.com")
	v.SetDefault("bootstrap.admin_password", "Admin@123")
	v.SetDefault("bootstrap.admin_name", "System Administrator")
}

// DefaultFromEmail parses Email.From, falling back to a bare localhost address.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.Email.From)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewTestConfig returns the configuration used by tests: fast hashing, no reporting, temp dirs chosen by the caller.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var conf Config
	_ = v.Unmarshal(&conf)
	conf.Env = "test"
	conf.Debug = false
	conf.TestMode = true
	conf.Log.Pretty = false
	conf.Security.BcryptCost = 4
	conf.SecretKey = "test-secret"
	return &conf
}
