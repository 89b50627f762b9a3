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
)

// Config is the full set of connection parameters the admin tools accept.
// Every field has an entry in Defaults; nothing is read from the process
// environment after Load returns.
type Config struct {
	Datastore DatastoreConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	API       APIConfig
	Browser   BrowserConfig
	TTS       TTSConfig
	Logging   LoggingConfig
	DevStub   DevStubConfig
}

type DatastoreConfig struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	DSN            string
	ConnectTimeout time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ScanLimit      int
	ConnectTimeout time.Duration
}

type APIConfig struct {
	BaseURL   string
	LoginPath string
	Username  string
	Password  string
	Timeout   time.Duration
}

// LoginURL joins the base URL and the login path.
func (c APIConfig) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.LoginPath, "/")
}

type BrowserConfig struct {
	URL               string
	Bin               string
	Headless          bool
	ScreenshotPath    string
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
}

type TTSConfig struct {
	BaseURL      string
	APIKey       string
	VoiceType    string
	Format       string
	WebsocketURL string
	Timeout      time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

type DevStubConfig struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string
}

// Defaults returns the configuration used when neither the environment nor an
// env file supplies a value. No password or API key is defaulted.
func Defaults() Config {
	return Config{
		Datastore: DatastoreConfig{
			Driver:         "mysql",
			Host:           "localhost",
			Port:           3306,
			User:           "root",
			Database:       "kindergarten",
			ConnectTimeout: 5 * time.Second,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "kindergarten",
			ConnectTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			ScanLimit:      1000,
			ConnectTimeout: 5 * time.Second,
		},
		API: APIConfig{
			BaseURL:   "http://localhost:3001",
			LoginPath: "/api/auth/login",
			Username:  "admin",
			Timeout:   5 * time.Second,
		},
		Browser: BrowserConfig{
			URL:               "http://localhost:5173/login",
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
		},
		TTS: TTSConfig{
			BaseURL:   "https://openai.qiniu.com/v1",
			VoiceType: "qiniu_zh_female_tmjxxy",
			Format:    "mp3",
			Timeout:   60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "console",
			ServiceName: "kadmin",
		},
		DevStub: DevStubConfig{
			Addr:          ":3001",
			JWTSecret:     "dev-secret",
			TokenTTL:      24 * time.Hour,
			AdminUsername: "admin",
		},
	}
}

// Load resolves the configuration from the process environment, then the given
// env files (missing files are skipped), then Defaults. The process
// environment is never modified.
func Load(envFiles ...string) (Config, error) {
	fileValues, err := readEnvFiles(envFiles)
	if err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	return FromLookup(func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	})
}

// FromLookup builds a Config from Defaults, overriding each field whose key
// the lookup function reports as present and non-blank.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	r := &resolver{lookup: lookup}

	r.str("DB_DRIVER", &cfg.Datastore.Driver)
	r.str("DB_HOST", &cfg.Datastore.Host)
	r.integer("DB_PORT", &cfg.Datastore.Port)
	r.str("DB_USER", &cfg.Datastore.User)
	r.str("DB_PASSWORD", &cfg.Datastore.Password)
	r.str("DB_NAME", &cfg.Datastore.Database)
	r.str("DB_DSN", &cfg.Datastore.DSN)
	r.duration("DB_CONNECT_TIMEOUT", &cfg.Datastore.ConnectTimeout)

	r.str("MONGO_URI", &cfg.Mongo.URI)
	r.str("MONGO_DATABASE", &cfg.Mongo.Database)
	r.duration("MONGO_CONNECT_TIMEOUT", &cfg.Mongo.ConnectTimeout)

	r.str("REDIS_ADDR", &cfg.Redis.Addr)
	r.str("REDIS_PASSWORD", &cfg.Redis.Password)
	r.integer("REDIS_DB", &cfg.Redis.DB)
	r.integer("REDIS_SCAN_LIMIT", &cfg.Redis.ScanLimit)
	r.duration("REDIS_CONNECT_TIMEOUT", &cfg.Redis.ConnectTimeout)

	r.str("API_BASE_URL", &cfg.API.BaseURL)
	r.str("API_LOGIN_PATH", &cfg.API.LoginPath)
	r.str("API_USERNAME", &cfg.API.Username)
	r.str("API_PASSWORD", &cfg.API.Password)
	r.duration("API_TIMEOUT", &cfg.API.Timeout)

	r.str("BROWSER_URL", &cfg.Browser.URL)
	r.str("BROWSER_BIN", &cfg.Browser.Bin)
	r.boolean("BROWSER_HEADLESS", &cfg.Browser.Headless)
	r.str("BROWSER_SCREENSHOT", &cfg.Browser.ScreenshotPath)
	r.duration("BROWSER_NAVIGATION_TIMEOUT", &cfg.Browser.NavigationTimeout)
	r.integer("BROWSER_VIEWPORT_WIDTH", &cfg.Browser.ViewportWidth)
	r.integer("BROWSER_VIEWPORT_HEIGHT", &cfg.Browser.ViewportHeight)

	r.str("TTS_BASE_URL", &cfg.TTS.BaseURL)
	r.str("TTS_API_KEY", &cfg.TTS.APIKey)
	r.str("TTS_VOICE_TYPE", &cfg.TTS.VoiceType)
	r.str("TTS_FORMAT", &cfg.TTS.Format)
	r.str("TTS_WEBSOCKET_URL", &cfg.TTS.WebsocketURL)
	r.duration("TTS_TIMEOUT", &cfg.TTS.Timeout)

	r.str("LOG_LEVEL", &cfg.Logging.Level)
	r.str("LOG_ENCODING", &cfg.Logging.Encoding)
	r.boolean("LOG_DEVELOPMENT", &cfg.Logging.Development)
	r.boolean("LOG_CALLER", &cfg.Logging.EnableCaller)
	r.str("SERVICE_NAME", &cfg.Logging.ServiceName)

	r.str("DEVSTUB_ADDR", &cfg.DevStub.Addr)
	r.str("DEVSTUB_JWT_SECRET", &cfg.DevStub.JWTSecret)
	r.duration("DEVSTUB_TOKEN_TTL", &cfg.DevStub.TokenTTL)
	r.str("DEVSTUB_ADMIN_USERNAME", &cfg.DevStub.AdminUsername)
	r.str("DEVSTUB_ADMIN_PASSWORD", &cfg.DevStub.AdminPassword)

	cfg.Datastore.Driver = strings.ToLower(cfg.Datastore.Driver)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Encoding = strings.ToLower(cfg.Logging.Encoding)
	cfg.TTS.BaseURL = strings.TrimRight(cfg.TTS.BaseURL, "/")

	if len(r.errs) > 0 {
		return Config{}, errors.Join(r.errs...)
	}

	return cfg, nil
}

var supportedDrivers = map[string]bool{
	"mysql":    true,
	"postgres": true,
	"sqlite":   true,
}

// Validate reports missing or unsupported datastore settings.
func (c DatastoreConfig) Validate() error {
	if c.DSN != "" {
		if !supportedDrivers[c.Driver] {
			return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Driver)
		}
		return nil
	}

	missing := make([]string, 0, 3)
	if !supportedDrivers[c.Driver] {
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Driver)
	}
	if c.Database == "" {
		missing = append(missing, "DB_NAME")
	}
	if c.Driver != "sqlite" {
		if c.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.User == "" {
			missing = append(missing, "DB_USER")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Validate reports settings the dev stub cannot start without.
func (c DevStubConfig) Validate() error {
	if strings.TrimSpace(c.AdminPassword) == "" {
		return errors.New("config: DEVSTUB_ADMIN_PASSWORD is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: DEVSTUB_JWT_SECRET is required")
	}
	return nil
}

func readEnvFiles(paths []string) (map[string]string, error) {
	values := make(map[string]string)

	// Later files lose to earlier ones, matching godotenv.Load.
	for i := len(paths) - 1; i >= 0; i-- {
		fileValues, err := godotenv.Read(paths[i])
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				// ignore missing env files so that variables can be supplied externally
				continue
			}
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	return values, nil
}

type resolver struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *resolver) value(key string) (string, bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (r *resolver) str(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *resolver) integer(key string, dst *int) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Errorf("config: %s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (r *resolver) boolean(key string, dst *bool) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s: invalid boolean %q", key, v))
		return
	}
	*dst = b
}

func (r *resolver) duration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("config: %s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
