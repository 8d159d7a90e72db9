// Package config loads the service configuration.
//
// Values are resolved with the priority CLI flags > environment variables >
// JSON config file > defaults. A .env file in the working directory is loaded
// into the environment first, if present.
//
// AUTH_SIGNING_KEY has no default and must be set. Durations in the JSON file
// are written as Go duration strings ("10s", "24h"), the same as in the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	ConfigFile string `env:"CONFIG" json:"-"`

	RunAddr  string `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel string `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`

	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	MongoURI            string        `env:"MONGO_URI" json:"mongo_uri"`
	MongoDatabase       string        `env:"MONGO_DATABASE" json:"mongo_database"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	AuthCookieName string        `env:"AUTH_COOKIE_NAME" json:"auth_cookie_name" validate:"required"`
	AuthSigningKey string        `env:"AUTH_SIGNING_KEY" json:"auth_signing_key" validate:"required,base64url,min=32"`
	AuthTokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" json:"auth_token_ttl" validate:"gt=0"`

	SuperAdminEmail    string `env:"SUPERADMIN_EMAIL" json:"superadmin_email" validate:"omitempty,email"`
	SuperAdminPassword string `env:"SUPERADMIN_PASSWORD" json:"superadmin_password"`
	SuperAdminName     string `env:"SUPERADMIN_NAME" json:"superadmin_name"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	MongoDatabase:       "sitegate",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/sitegate/migrations",
	AuthCookieName:      "auth",
	AuthTokenTTL:        24 * time.Hour,
	SuperAdminName:      "Super Admin",
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command line parsing; used by tests that
// must not touch os.Args.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New resolves the configuration from every source and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}

	fromFlags, configFileFlag := Config{}, ""
	if !options.disableFlagsParsing {
		fromFlags, configFileFlag = parseFlags()
	}

	configFile := fromEnv.ConfigFile
	if configFileFlag != "" {
		configFile = configFileFlag
	}

	var fromJSON Config
	if configFile != "" {
		var err error
		fromJSON, err = loadJSON(configFile)
		if err != nil {
			return nil, err
		}
	}

	// Each layer only fills what the layers above left empty.
	result := Config{ConfigFile: configFile}
	applyDefaults(&result, fromFlags)
	applyDefaults(&result, fromEnv)
	applyDefaults(&result, fromJSON)
	applyDefaults(&result, defaultConfig)

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func parseFlags() (Config, string) {
	var values Config
	var configFile string

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configFile, "c", "", "path to the JSON config file")
	fs.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	fs.StringVar(&values.LogLevel, "l", "", "logger level")
	fs.StringVar(&values.DBFileName, "f", "", "JSON file name with users")
	fs.StringVar(&values.DatabaseDSN, "d", "", "PostgreSQL connection string")
	fs.StringVar(&values.MongoURI, "m", "", "MongoDB connection URI")
	_ = fs.Parse(os.Args[1:])

	return values, configFile
}

// jsonDuration accepts both "10s" and integer nanoseconds.
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch value := raw.(type) {
	case float64:
		*d = jsonDuration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
	default:
		return fmt.Errorf("invalid duration: %s", data)
	}

	return nil
}

// jsonConfig shadows the duration fields of Config.
type jsonConfig struct {
	Config
	DBConnectionTimeout jsonDuration `json:"db_connection_timeout"`
	AuthTokenTTL        jsonDuration `json:"auth_token_ttl"`
}

func loadJSON(fileName string) (Config, error) {
	var values jsonConfig

	data, err := os.ReadFile(fileName)
	if err != nil {
		return Config{}, fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return Config{}, fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	result := values.Config
	result.DBConnectionTimeout = time.Duration(values.DBConnectionTimeout)
	result.AuthTokenTTL = time.Duration(values.AuthTokenTTL)

	return result, nil
}

func applyDefaults(target *Config, defaults Config) {
	setString := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	setDuration := func(dst *time.Duration, src time.Duration) {
		if *dst == 0 {
			*dst = src
		}
	}

	setString(&target.RunAddr, defaults.RunAddr)
	setString(&target.LogLevel, defaults.LogLevel)
	setString(&target.DBFileName, defaults.DBFileName)
	setString(&target.DatabaseDSN, defaults.DatabaseDSN)
	setString(&target.MongoURI, defaults.MongoURI)
	setString(&target.MongoDatabase, defaults.MongoDatabase)
	setDuration(&target.DBConnectionTimeout, defaults.DBConnectionTimeout)
	setString(&target.MigrationsDir, defaults.MigrationsDir)
	setString(&target.AuthCookieName, defaults.AuthCookieName)
	setString(&target.AuthSigningKey, defaults.AuthSigningKey)
	setDuration(&target.AuthTokenTTL, defaults.AuthTokenTTL)
	setString(&target.SuperAdminEmail, defaults.SuperAdminEmail)
	setString(&target.SuperAdminPassword, defaults.SuperAdminPassword)
	setString(&target.SuperAdminName, defaults.SuperAdminName)
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	if c.SuperAdminEmail != "" && c.SuperAdminPassword == "" {
		return errors.New("SUPERADMIN_PASSWORD is required when SUPERADMIN_EMAIL is set")
	}

	return validate.Struct(c)
}
