package config

import (
	"github.com/spf13/viper"
	"sync"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("check_interval_minutes", "CHECK_INTERVAL_MINUTES")
		viper.BindEnv("price_ttl_seconds", "PRICE_TTL_SECONDS")
		viper.BindEnv("history_days", "HISTORY_DAYS")
		viper.BindEnv("fib_lookback", "FIB_LOOKBACK")
		viper.BindEnv("max_concurrent_fetches", "MAX_CONCURRENT_FETCHES")
		viper.BindEnv("request_timeout_seconds", "REQUEST_TIMEOUT_SECONDS")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("check_interval_minutes", 5)
		viper.SetDefault("price_ttl_seconds", 30)
		viper.SetDefault("history_days", 90)
		viper.SetDefault("fib_lookback", 60)
		viper.SetDefault("max_concurrent_fetches", 4)
		viper.SetDefault("request_timeout_seconds", 10)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
