package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	apiKeyENV         = "BYBIT_API_KEY"
	apiSecretENV      = "BYBIT_API_SECRET"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
)

// Config ...
type Config struct {
	Bybit struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		RestURL   string `yaml:"rest_url"`
		WSPublic  string `yaml:"ws_public"`
		WSPrivate string `yaml:"ws_private"`
	} `yaml:"bybit"`

	DB string `yaml:"db_dsn"`

	// Чьи ключи тянуть из хранилища на старте; 0 — работаем с парой
	// из конфига/окружения.
	CredentialsUserID int64 `yaml:"credentials_user_id"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Дефолты риска.
	// Какую долю доступного баланса (с плечом) отдаём в одну сделку.
	DefaultRiskPct float64 `yaml:"risk_pct"` // 0.01 => 1% от available*leverage
	DefaultTPPct   float64 `yaml:"tp_pct"`   // 0.005 => +0.5% от входа
	DefaultSLPct   float64 `yaml:"sl_pct"`   // 0.02  => -2% от входа

	DefaultLeverage float64 `yaml:"leverage"`
	SettleCoin      string  `yaml:"settle_coin"`

	// REST
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// WebSocket-фид
	WSPingInterval     time.Duration `yaml:"ws_ping_interval"`
	WSReadTimeout      time.Duration `yaml:"ws_read_timeout"`
	WSReconnectBase    time.Duration `yaml:"ws_reconnect_base"`
	WSReconnectMax     time.Duration `yaml:"ws_reconnect_max"`
	WSMaxReconnects    int           `yaml:"ws_max_reconnects"`
	PositionLookback   time.Duration `yaml:"position_lookback"`
	SubscriberQueueMax int           `yaml:"subscriber_queue_max"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		DefaultRiskPct:  floatFromEnv("RISK_PCT", 0.01),
		DefaultTPPct:    floatFromEnv("TP_PCT", 0.005),
		DefaultSLPct:    floatFromEnv("SL_PCT", 0.02),
		DefaultLeverage: floatFromEnv("LEVERAGE", 10),
		SettleCoin:      getenvDefault("SETTLE_COIN", "USDT"),

		CredentialsUserID: int64(intFromEnv("CREDENTIALS_USER_ID", 0)),

		RequestTimeout: durationFromEnv("REQUEST_TIMEOUT", "10s"),

		WSPingInterval:     durationFromEnv("WS_PING_INTERVAL", "20s"),
		WSReadTimeout:      durationFromEnv("WS_READ_TIMEOUT", "60s"),
		WSReconnectBase:    durationFromEnv("WS_RECONNECT_BASE", "1s"),
		WSReconnectMax:     durationFromEnv("WS_RECONNECT_MAX", "30s"),
		WSMaxReconnects:    intFromEnv("WS_MAX_RECONNECTS", 10),
		PositionLookback:   durationFromEnv("POSITION_LOOKBACK", "1m"),
		SubscriberQueueMax: intFromEnv("SUBSCRIBER_QUEUE_MAX", 64),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if config.Bybit.RestURL == "" {
		config.Bybit.RestURL = "https://api.bybit.com"
	}
	if config.Bybit.WSPublic == "" {
		config.Bybit.WSPublic = "wss://stream.bybit.com/v5/public/linear"
	}
	if config.Bybit.WSPrivate == "" {
		config.Bybit.WSPrivate = "wss://stream.bybit.com/v5/private"
	}

	// Секреты из окружения имеют приоритет над файлом.
	if key := os.Getenv(apiKeyENV); key != "" {
		config.Bybit.APIKey = key
	}
	if secret := os.Getenv(apiSecretENV); secret != "" {
		config.Bybit.APISecret = secret
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
