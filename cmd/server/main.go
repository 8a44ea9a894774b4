// Package main runs the alerting service: the periodic alert sweep, the live
// swap-feed monitor for one token at a time, the notification dispatcher and
// the SOL price tracker, plus an HTTP surface for health, status and metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-alerts/internal/alerting"
	"solana-alerts/internal/domain"
	"solana-alerts/internal/marketdata"
	"solana-alerts/internal/notify"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
	chstore "solana-alerts/internal/storage/clickhouse"
	"solana-alerts/internal/storage/memory"
	"solana-alerts/internal/storage/migrations"
	pgstore "solana-alerts/internal/storage/postgres"
	"solana-alerts/internal/stream"
)

const defaultSwapFeedEndpoint = "wss://pumpportal.fun/api/data"

// Server wires the service components together.
type Server struct {
	logger  *zap.Logger
	service *alerting.Service
	monitor *alerting.Monitor
	queue   storage.NotificationStore
	started time.Time
}

type stores struct {
	alerts       storage.AlertStore
	queue        storage.NotificationStore
	observations storage.ObservationStore // nil without an archive backend
}

func main() {
	loadEnvFile()

	wsEndpoint := flag.String("ws-endpoint", envOr("SWAP_WS_ENDPOINT", defaultSwapFeedEndpoint), "Swap feed WebSocket endpoint")
	marketDataURL := flag.String("market-data-url", os.Getenv("MARKET_DATA_URL"), "Market data API base URL override")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the observation archive (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP address for health/status/metrics")
	sweepInterval := flag.Duration("sweep-interval", alerting.DefaultSweepInterval, "Alert evaluation sweep interval")
	dispatchInterval := flag.Duration("dispatch-interval", notify.DefaultDispatchInterval, "Notification dispatch interval")
	solRefreshInterval := flag.Duration("sol-refresh-interval", marketdata.DefaultSOLRefreshInterval, "SOL price refresh interval")
	cacheTTL := flag.Duration("cache-ttl", 30*time.Second, "Market data cache TTL")
	smtpHost := flag.String("smtp-host", os.Getenv("SMTP_HOST"), "SMTP server host for email notifications")
	smtpPort := flag.Int("smtp-port", envIntOr("SMTP_PORT", 587), "SMTP server port")
	smtpFrom := flag.String("smtp-from", os.Getenv("SMTP_FROM"), "Email sender address")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	// Market data: HTTP gateway behind a TTL cache, plus the SOL tracker.
	var gwOpts []marketdata.DexScreenerOption
	if *marketDataURL != "" {
		gwOpts = append(gwOpts, marketdata.WithBaseURL(*marketDataURL))
	}
	gateway := marketdata.NewCachedGateway(marketdata.NewDexScreenerClient(logger, gwOpts...), *cacheTTL)
	solPrice := marketdata.NewSOLPriceTracker(gateway, *solRefreshInterval, logger)

	// Notification channels, each enabled by its own credentials.
	senders := buildSenders(*smtpHost, *smtpPort, *smtpFrom, logger)
	dispatcher := notify.NewDispatcher(st.queue, senders, *dispatchInterval, notify.DefaultBatchSize, logger)

	// Alerting core.
	streamClient := stream.NewClient(*wsEndpoint, nil, logger)
	trigger := alerting.NewTriggerer(st.alerts, dispatcher, logger)
	selector := alerting.NewTargetSelector(st.alerts, streamClient, logger)
	monitor := alerting.NewMonitor(st.alerts, st.observations, gateway, solPrice, trigger, selector, logger)
	engine := alerting.NewEngine(st.alerts, gateway, trigger, selector, *sweepInterval, logger)
	service := alerting.NewService(st.alerts, gateway, selector, logger)

	server := &Server{
		logger:  logger,
		service: service,
		monitor: monitor,
		queue:   st.queue,
		started: time.Now(),
	}

	if err := selector.ResumeOnStartup(ctx); err != nil {
		// The sweep still covers every alert; live monitoring catches up on
		// the next alert creation.
		logger.Warn("startup resume failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	runComponent := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			logger.Info("component stopped", zap.String("component", name))
		}()
	}

	runComponent("sol-price-tracker", solPrice.Run)
	runComponent("cache-eviction", func(ctx context.Context) { gateway.Run(ctx, *cacheTTL) })
	runComponent("alert-sweep", engine.Run)
	runComponent("notification-dispatcher", dispatcher.Run)
	runComponent("stream-monitor", func(ctx context.Context) { monitor.Run(ctx, streamClient.Events()) })

	httpServer := server.newHTTPServer(*httpAddr)
	go func() {
		logger.Info("http server listening", zap.String("addr", *httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	// Stop producers first. Cancellation only stops the component loops;
	// each cycle in flight runs on a detached context, so wg.Wait is the
	// write-completion barrier.
	streamClient.Close()
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// createStores selects the storage backends. ClickHouse is optional; without
// a DSN the observation archive is disabled.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *zap.Logger) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			alerts:       memory.NewAlertStore(),
			queue:        memory.NewNotificationStore(),
			observations: memory.NewObservationStore(),
		}
		logger.Info("using in-memory storage")
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		alerts: pgstore.NewAlertStore(pool),
		queue:  pgstore.NewNotificationStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.observations = chstore.NewObservationStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		logger.Info("observation archive disabled, no clickhouse DSN")
	}

	return st, cleanup, nil
}

// buildSenders enables each delivery channel that has credentials.
func buildSenders(smtpHost string, smtpPort int, smtpFrom string, logger *zap.Logger) map[domain.Channel]notify.Sender {
	senders := make(map[domain.Channel]notify.Sender)

	if smtpHost != "" && smtpFrom != "" {
		senders[domain.ChannelEmail] = notify.NewEmailSender(smtpHost, smtpPort, smtpFrom, os.Getenv("SMTP_PASSWORD"))
		logger.Info("email notifications enabled", zap.String("host", smtpHost))
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		senders[domain.ChannelTelegram] = notify.NewTelegramSender(token)
		logger.Info("telegram notifications enabled")
	}

	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		discord, err := notify.NewDiscordSender(token)
		if err != nil {
			logger.Warn("discord notifications disabled", zap.Error(err))
		} else {
			senders[domain.ChannelDiscord] = discord
			logger.Info("discord notifications enabled")
		}
	}

	if len(senders) == 0 {
		logger.Warn("no notification channels configured, deliveries will fail")
	}
	return senders
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status               string                     `json:"status"`
	UptimeSeconds        int64                      `json:"uptime_seconds"`
	Monitoring           *alerting.MonitoringStatus `json:"monitoring"`
	LastObservedPrice    *ObservedPrice             `json:"last_observed_price,omitempty"`
	PendingNotifications int                        `json:"pending_notifications"`
}

// ObservedPrice is the serialized form of the monitor's last observation.
type ObservedPrice struct {
	Mint        string  `json:"mint"`
	PriceSOL    float64 `json:"price_sol"`
	PriceUSD    float64 `json:"price_usd"`
	MarketCap   float64 `json:"market_cap"`
	TimestampMs int64   `json:"timestamp_ms"`
}

func observedPriceFrom(o *domain.SwapObservation) *ObservedPrice {
	if o == nil {
		return nil
	}
	return &ObservedPrice{
		Mint:        o.Mint,
		PriceSOL:    o.PriceSOL,
		PriceUSD:    o.PriceUSD,
		MarketCap:   o.MarketCap,
		TimestampMs: o.TimestampMs,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	monitoring, err := s.service.GetMonitoringStatus(r.Context())
	if err != nil {
		s.logger.Error("status query failed", zap.Error(err))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	pending, err := s.queue.CountPending(r.Context())
	if err != nil {
		s.logger.Error("pending count failed", zap.Error(err))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Status:               "ok",
		UptimeSeconds:        int64(time.Since(s.started).Seconds()),
		Monitoring:           monitoring,
		LastObservedPrice:    observedPriceFrom(s.monitor.LastObservation()),
		PendingNotifications: pending,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode status", zap.Error(err))
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
