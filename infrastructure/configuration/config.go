package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"shabbat-mode/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	YouTube     YouTube     `json:"youtube"`
	OAuth       OAuth       `json:"oauth"`
	Vault       Vault       `json:"vault"`
	Scheduler   Scheduler   `json:"scheduler"`
	TimeData    TimeData    `json:"timeData"`
	Platforms   []string    `json:"platforms"`
}

type App struct {
	Port           int      `json:"port"`
	SecretKey      string   `json:"secretKey"`
	TLSEnabled     bool     `json:"tlsEnabled"`
	TLSCertFile    string   `json:"tlsCertFile"`
	TLSKeyFile     string   `json:"tlsKeyFile"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"string"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
}

type YouTube struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
	Endpoint     string   `json:"endpoint"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	Facebook OAuthClient `json:"facebook"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	GraphURL     string `json:"graphURL"`
}

// Vault configures at-rest encryption of OAuth tokens
type Vault struct {
	EncryptionKey string `json:"encryptionKey"`
	KeyVersion    int    `json:"keyVersion"`
}

// Scheduler bounds the dispatcher and the history log
type Scheduler struct {
	Enabled                 bool   `json:"enabled"`
	MaxConcurrentOperations int    `json:"maxConcurrentOperations"`
	MaxConcurrentItems      int    `json:"maxConcurrentItems"`
	HistoryRetention        int    `json:"historyRetention"`
	RolloverPolicy          string `json:"rolloverPolicy"`
	IdleRecheckSeconds      int    `json:"idleRecheckSeconds"`
	RetryAttempts           int    `json:"retryAttempts"`
	RequestsPerSecond       int    `json:"requestsPerSecond"`
}

// TimeData points at the candle-lighting calendar service
type TimeData struct {
	BaseURL          string `json:"baseURL"`
	CandleMinutes    int    `json:"candleMinutes"`
	HavdalahMinutes  int    `json:"havdalahMinutes"`
	CacheTTLMinutes  int    `json:"cacheTTLMinutes"`
	DefaultTimezone  string `json:"defaultTimezone"`
	DefaultLocation  string `json:"defaultLocation"`
	RequestTimeoutMS int    `json:"requestTimeoutMS"`
}

var C Config

func init() {
	Init(envFiles...)
}

// Init fills C: env files first, then the json config, then environment overrides.
func Init(files ...string) {
	if loaded := LoadEnvFromFile(files...); len(loaded) > 0 {
		logger.GetLogger().WithField("files", loaded).Info("Environment files loaded")
	}
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initVault(&C)
	initScheduler(&C)
	initTimeData(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	C.Database.Psql.Name = firstNonEmpty(C.Database.Psql.Name, os.Getenv("DB_NAME"))
	C.Database.Psql.Host = firstNonEmpty(C.Database.Psql.Host, os.Getenv("DB_HOST"))
	C.Database.Psql.User = firstNonEmpty(C.Database.Psql.User, os.Getenv("DB_USER"))
	C.Database.Psql.Password = firstNonEmpty(C.Database.Psql.Password, os.Getenv("DB_PASSWORD"))
	C.Database.Psql.Port = firstNonEmpty(C.Database.Psql.Port, os.Getenv("DB_PORT"), "5432")

	C.Database.MySql.Name = firstNonEmpty(C.Database.MySql.Name, os.Getenv("MYSQL_DB_NAME"))
	C.Database.MySql.Host = firstNonEmpty(C.Database.MySql.Host, os.Getenv("MYSQL_HOST"), "localhost")
	C.Database.MySql.User = firstNonEmpty(C.Database.MySql.User, os.Getenv("MYSQL_USER"))
	C.Database.MySql.Password = firstNonEmpty(C.Database.MySql.Password, os.Getenv("MYSQL_PASSWORD"))
	C.Database.MySql.Port = firstNonEmpty(C.Database.MySql.Port, os.Getenv("MYSQL_PORT"), "3306")

	// Optional MSSQL config via environment variables (for Azure SQL in production)
	C.Database.Mssql.Name = firstNonEmpty(C.Database.Mssql.Name, os.Getenv("MSSQL_DB_NAME"))
	C.Database.Mssql.Host = firstNonEmpty(C.Database.Mssql.Host, os.Getenv("MSSQL_HOST"), "localhost")
	C.Database.Mssql.Password = firstNonEmpty(C.Database.Mssql.Password, os.Getenv("MSSQL_PASSWORD"))
	C.Database.Mssql.Port = firstNonEmpty(C.Database.Mssql.Port, os.Getenv("MSSQL_PORT"), "1433")
	C.Database.Mssql.User = firstNonEmpty(C.Database.Mssql.User, os.Getenv("MSSQL_USER"), "sa")

	C.Database.Mongo.Host = firstNonEmpty(C.Database.Mongo.Host, os.Getenv("MONGO_HOST"))
	C.Database.Mongo.Port = firstNonEmpty(C.Database.Mongo.Port, os.Getenv("MONGO_PORT"), "27017")
	C.Database.Mongo.Name = firstNonEmpty(C.Database.Mongo.Name, os.Getenv("MONGO_DB_NAME"), "shabbat_mode")

	logger.GetLogger().WithFields(map[string]interface{}{
		"psqlHost":  C.Database.Psql.Host,
		"mysqlHost": C.Database.MySql.Host,
		"mongoHost": C.Database.Mongo.Host,
	}).Info("Database configuration")
}

func initApp(C *Config) {
	// Prefer SECRET_KEY from environment for JWT verification; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := firstNonEmpty(os.Getenv("APP_PORT"), os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			C.App.TLSEnabled = b
		}
	}
	C.App.TLSCertFile = firstNonEmpty(C.App.TLSCertFile, os.Getenv("TLS_CERT_FILE"))
	C.App.TLSKeyFile = firstNonEmpty(C.App.TLSKeyFile, os.Getenv("TLS_KEY_FILE"))
	if len(C.App.AllowedOrigins) == 0 {
		C.App.AllowedOrigins = []string{"http://localhost:4200", "https://localhost:4200"}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initVault(C *Config) {
	C.Vault.EncryptionKey = firstNonEmpty(os.Getenv("TOKEN_ENCRYPTION_KEY"), C.Vault.EncryptionKey)
	if C.Vault.KeyVersion == 0 {
		C.Vault.KeyVersion = 1
	}
}

func initScheduler(C *Config) {
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			C.Scheduler.Enabled = b
		}
	} else if !viper.IsSet("scheduler.enabled") {
		C.Scheduler.Enabled = true
	}
	if C.Scheduler.MaxConcurrentOperations <= 0 {
		C.Scheduler.MaxConcurrentOperations = 8
	}
	if C.Scheduler.MaxConcurrentItems <= 0 {
		C.Scheduler.MaxConcurrentItems = 4
	}
	if C.Scheduler.HistoryRetention <= 0 {
		C.Scheduler.HistoryRetention = 50
	}
	if C.Scheduler.RolloverPolicy == "" {
		C.Scheduler.RolloverPolicy = "fixed_week"
	}
	if C.Scheduler.IdleRecheckSeconds <= 0 {
		C.Scheduler.IdleRecheckSeconds = 3600
	}
	if C.Scheduler.RetryAttempts <= 0 {
		C.Scheduler.RetryAttempts = 3
	}
	if C.Scheduler.RequestsPerSecond <= 0 {
		C.Scheduler.RequestsPerSecond = 5
	}
	if len(C.Platforms) == 0 {
		C.Platforms = []string{"youtube", "facebook"}
	}
}

func initTimeData(C *Config) {
	C.TimeData.BaseURL = firstNonEmpty(os.Getenv("TIMEDATA_BASE_URL"), C.TimeData.BaseURL, "https://www.hebcal.com")
	if C.TimeData.CandleMinutes <= 0 {
		C.TimeData.CandleMinutes = 18
	}
	if C.TimeData.HavdalahMinutes < 0 {
		C.TimeData.HavdalahMinutes = 0
	}
	if C.TimeData.CacheTTLMinutes <= 0 {
		C.TimeData.CacheTTLMinutes = 24 * 60
	}
	if C.TimeData.RequestTimeoutMS <= 0 {
		C.TimeData.RequestTimeoutMS = 5000
	}
	C.TimeData.DefaultTimezone = firstNonEmpty(C.TimeData.DefaultTimezone, "UTC")
}

// CacheTTL is the redis TTL for time-data lookups
func (t TimeData) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLMinutes) * time.Minute
}

// RequestTimeout bounds one call to the time-data service
func (t TimeData) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutMS) * time.Millisecond
}

// IdleRecheck is the longest the dispatcher sleeps when nothing is pending
func (s Scheduler) IdleRecheck() time.Duration {
	return time.Duration(s.IdleRecheckSeconds) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
