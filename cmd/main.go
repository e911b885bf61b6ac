package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"stock-target-bot/config"
	"stock-target-bot/internal/alert"
	"stock-target-bot/internal/database"
	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/price"
	"stock-target-bot/internal/registry"
	"stock-target-bot/internal/telegram"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")

	if err := database.InitDB(config.GetString("db_path")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	loadMetricsFromDB()

	reg := registry.New(database.Store{})
	if err := reg.Load(); err != nil {
		log.Fatalf("Failed to load target registry: %v", err)
	}

	requestTimeout := time.Duration(config.GetInt("request_timeout_seconds")) * time.Second
	provider := marketdata.NewYahooClient(requestTimeout)
	prices := price.NewCache(time.Duration(config.GetInt("price_ttl_seconds")) * time.Second)

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
		RequestTimeout: requestTimeout,
		HistoryDays:    config.GetInt("history_days"),
		FibLookback:    config.GetInt("fib_lookback"),
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	bot.Registry = reg
	bot.Prices = prices
	bot.Provider = provider

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := alert.NewService(alert.Config{
		Interval:             time.Duration(config.GetInt("check_interval_minutes")) * time.Minute,
		HistoryDays:          config.GetInt("history_days"),
		FibLookback:          config.GetInt("fib_lookback"),
		MaxConcurrentFetches: config.GetInt("max_concurrent_fetches"),
		RequestTimeout:       requestTimeout,
	}, reg, prices, provider, bot)
	monitor.Start(ctx)

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}

	go handleUpdates(bot, updates)

	go runPeriodic(ctx, 5*time.Minute, saveMetricsToDB)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
		saveMetricsToDB()
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting stock target bot...")
}

func handleUpdates(bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			log.Debug("Received non-command update")
			continue
		}

		handleCommand(bot, update)
	}
}

func handleCommand(bot *telegram.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	text := bot.HandleUpdate(update)
	if text == "" {
		return
	}

	err := bot.SendMessage(telegram.Message{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	}
}

// runPeriodic invokes fn on every tick until ctx is cancelled.
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func loadMetricsFromDB() {
	cycles, _ := database.GetMetric("cycles_completed")
	warnings, _ := database.GetMetric("approach_warnings")
	providerErrors, _ := database.GetMetric("provider_errors")
	deliveryFailures, _ := database.GetMetric("delivery_failures")

	alert.CyclesCompleted.Add(cycles)
	alert.ApproachWarnings.Add(warnings)
	alert.ProviderErrors.Add(providerErrors)
	alert.DeliveryFailures.Add(deliveryFailures)

	fired, _ := database.GetMetricsWithLabels("alerts_fired")
	for symbol, value := range fired {
		alert.AlertsFired.WithLabelValues(symbol).Add(value)
	}

	log.Debug("Metrics loaded from database.")
}

func saveMetricsToDB() {
	database.SaveMetric("cycles_completed", "", "", getMetricValue(alert.CyclesCompleted))
	database.SaveMetric("approach_warnings", "", "", getMetricValue(alert.ApproachWarnings))
	database.SaveMetric("provider_errors", "", "", getMetricValue(alert.ProviderErrors))
	database.SaveMetric("delivery_failures", "", "", getMetricValue(alert.DeliveryFailures))

	metricChan := make(chan prometheus.Metric, 64)
	go func() {
		alert.AlertsFired.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read alerts_fired metric: %v", err)
			continue
		}
		var symbol string
		for _, label := range metricProto.Label {
			if label.GetName() == "symbol" {
				symbol = label.GetValue()
			}
		}
		database.SaveMetric("alerts_fired", "symbol", symbol, metricProto.Counter.GetValue())
	}

	log.Debug("Metrics saved to database.")
}

func getMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	}
	if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
