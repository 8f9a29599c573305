package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string `env:"APP_ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"3000"`
	// PublicURL is the origin used in e-mails and payment redirects. Required in production;
	// development falls back to http://localhost:<PORT>.
	PublicURL string `env:"PUBLIC_URL"`

	Mongo     Mongo
	JWT       JWT
	Security  Security
	Query     Query
	Redis     Redis
	Minio     Minio
	Mail      Mail
	Stripe    Stripe
	MapboxKey string `env:"MAPBOX_TOKEN"`
}

type Mongo struct {
	// URI may contain a <PASSWORD> placeholder filled from Password.
	URI      string        `env:"DATABASE" env-default:"mongodb://localhost:27017"`
	Password string        `env:"DATABASE_PASSWORD"`
	Name     string        `env:"DATABASE_NAME" env-default:"tourbook"`
	Timeout  time.Duration `env:"DATABASE_TIMEOUT" env-default:"10s"`
}

type JWT struct {
	Secret            string        `env:"JWT_SECRET" env-required:"true"`
	ExpiresIn         time.Duration `env:"JWT_EXPIRES_IN" env-default:"2160h"`
	CookieExpiresDays int           `env:"JWT_COOKIE_EXPIRES_IN" env-default:"90"`
}

type Security struct {
	BcryptCost    int           `env:"BCRYPT_COST" env-default:"12"`
	RateLimitMax  int           `env:"RATE_LIMIT_MAX" env-default:"100"`
	RateLimitSpan time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1h"`
	BodyLimit     int           `env:"JSON_BODY_LIMIT" env-default:"10240"`
	UploadLimit   int           `env:"UPLOAD_BODY_LIMIT" env-default:"5242880"`
	// RevealUnknownEmail makes forgot-password answer 404 for unknown addresses.
	RevealUnknownEmail bool          `env:"FORGOT_PASSWORD_REVEAL_UNKNOWN" env-default:"false"`
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL" env-default:"10m"`
	// ProxyHeader names the header carrying the client IP, e.g. X-Forwarded-For. Empty trusts the socket.
	ProxyHeader string `env:"PROXY_HEADER"`
}

type Query struct {
	// DefaultLimit applies when page is given without limit.
	DefaultLimit int64 `env:"PAGE_LIMIT_DEFAULT" env-default:"2"`
	MaxLimit     int64 `env:"PAGE_LIMIT_MAX" env-default:"100"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type Minio struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"user-photos"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type Mail struct {
	// Transport is one of smtp, amqp or log.
	Transport string        `env:"MAIL_TRANSPORT" env-default:"log"`
	From      string        `env:"EMAIL_FROM" env-default:"tourbook <hello@tourbook.io>"`
	Host      string        `env:"EMAIL_HOST"`
	Port      int           `env:"EMAIL_PORT" env-default:"587"`
	Username  string        `env:"EMAIL_USERNAME"`
	Password  string        `env:"EMAIL_PASSWORD"`
	Timeout   time.Duration `env:"MAIL_TIMEOUT" env-default:"10s"`
	AMQPURL   string        `env:"AMQP_URL"`
	Queue     string        `env:"MAIL_QUEUE" env-default:"mail"`
}

type Stripe struct {
	SecretKey string        `env:"STRIPE_SECRET_KEY"`
	Currency  string        `env:"STRIPE_CURRENCY" env-default:"usd"`
	BaseURL   string        `env:"STRIPE_API_URL" env-default:"https://api.stripe.com"`
	Timeout   time.Duration `env:"STRIPE_TIMEOUT" env-default:"10s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.PublicURL == "" && cfg.Env == EnvDevelopment {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Mongo.URI = strings.ReplaceAll(cfg.Mongo.URI, "<PASSWORD>", cfg.Mongo.Password)
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if err := c.validatePublicURL(); err != nil {
		return err
	}
	switch c.Mail.Transport {
	case "smtp":
		if c.Mail.Host == "" {
			return fmt.Errorf("EMAIL_HOST is required for the smtp transport")
		}
	case "amqp":
		if c.Mail.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for the amqp transport")
		}
	case "log":
		if c.IsProduction() {
			return fmt.Errorf("MAIL_TRANSPORT=log is not allowed in production")
		}
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be smtp, amqp or log, got %q", c.Mail.Transport)
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.Security.BcryptCost)
	}
	return nil
}

func (c *Config) validatePublicURL() error {
	if c.PublicURL == "" {
		return fmt.Errorf("PUBLIC_URL is required in production")
	}
	u, err := url.Parse(c.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.PublicURL)
	}
	return nil
}

// IsProduction selects strict error output and secure cookies.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CookieTTL is the lifetime of the session cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWT.CookieExpiresDays) * 24 * time.Hour
}
