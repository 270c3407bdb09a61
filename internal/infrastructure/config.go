package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "GOCP"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// completion store drivers
const (
	StoreRedis = "redis"
	StoreSQL   = "sql"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`      // abort requests running longer than this
	Database       struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"omitempty,oneof=mysql postgres"` // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                                 // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                       // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                     // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                 // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"`  // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                              // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema"`                                           // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                     // db username
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength  int    `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated request ids
		JWTMethod string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS384 HS512"`
		JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"` // shared with the platform auth server
		TokenName string `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"` // cookie name holding the token
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                 // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                 // bind listen port
		Password string `mapstructure:"password" json:"password" yaml:"password" validate:"required"` // password for security reasons
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	Platform struct {
		BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"` // platform REST API root
		Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                            // per call timeout
	} `mapstructure:"platform" json:"platform" yaml:"platform"`
	Progress struct {
		Store            string        `mapstructure:"store" json:"store" yaml:"store" validate:"oneof=redis sql"`                             // local completion cache
		PassingThreshold float64       `mapstructure:"passing_threshold" json:"passing_threshold" yaml:"passing_threshold" validate:"gte=0"`   // certificate quiz score
		QuizScale        float64       `mapstructure:"quiz_scale" json:"quiz_scale" yaml:"quiz_scale" validate:"gtfield=PassingThreshold"`     // maximum quiz score
		SessionIdle      time.Duration `mapstructure:"session_idle" json:"session_idle" yaml:"session_idle"`                                   // evict idle trackers
	} `mapstructure:"progress" json:"progress" yaml:"progress"`
	Catalog struct {
		CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"` // 0 disables course caching
	} `mapstructure:"catalog" json:"catalog" yaml:"catalog"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "", "application identifier (required)")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "request timeout(m, s and h units are supported), eg.30s")

	// database
	pflag.String("database.driver", "mysql", "database driver to use, 'mysql' or 'postgres'")
	pflag.String("database.host", "127.0.0.1", "database host")
	pflag.Int("database.port", 3306, "database server port")
	pflag.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	pflag.String("database.username", "", "database username (required by the sql store)")
	pflag.String("database.password", "", "database password (required by the sql store)")
	pflag.String("database.schema", "", "database schema (required by the sql store)")
	pflag.String("database.query", "", `additional DSN query parameters('?' is auto prefixed), if you work with mysql and wish to
work with time.Time, you may specify "parseTime=true"`)
	pflag.Int32("database.maxconn", 50, "max connection count")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 24, "set length of generated request ids")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used by the platform to sign tokens")
	pflag.String("security.jwt_secret", "", "JWT secret (required)")
	pflag.String("security.token_name", "", "cookie name to read the token from (required)")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password (required)")

	// platform
	pflag.String("platform.base_url", "", "platform REST API base url (required), eg.https://api.example.com/v1")
	pflag.Duration("platform.timeout", 10*time.Second, "timeout for each platform call")

	// progress
	pflag.String("progress.store", StoreRedis, "local completion cache, 'redis' or 'sql'")
	pflag.Float64("progress.passing_threshold", 17, "minimum quiz score granting a certificate")
	pflag.Float64("progress.quiz_scale", 20, "maximum quiz score")
	pflag.Duration("progress.session_idle", 30*time.Minute, "evict trackers idle for longer than this")

	// catalog
	pflag.Duration("catalog.cache_ttl", 5*time.Minute, "course cache lifetime, 0 disables the cache")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	var msg []string
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	if err != nil {
		for _, field := range err.(validator.ValidationErrors) {
			namespace := field.Namespace()
			fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
			switch field.Tag() {
			case "required":
				msg = append(msg, fmt.Sprintf("%s is required", fieldName))
			case "oneof":
				msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
			default:
				msg = append(msg, fmt.Sprintf("%s failed on '%s'", fieldName, field.Tag()))
			}
		}
	}

	// the sql store needs a complete database section
	if config.Progress.Store == StoreSQL {
		db := config.Database
		if db.Driver == "" || db.User == "" || db.Password == "" || db.Schema == "" {
			msg = append(msg, "database.driver, database.username, database.password and database.schema are required by the sql store")
		}
	}
	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
