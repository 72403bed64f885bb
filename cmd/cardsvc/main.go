package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/kaprika-press/card-services/configs"
	"github.com/kaprika-press/card-services/internal/cardsvc/broker"
	svcconfig "github.com/kaprika-press/card-services/internal/cardsvc/config"
	"github.com/kaprika-press/card-services/internal/cardsvc/handlers"
	"github.com/kaprika-press/card-services/internal/cardsvc/service"
	"github.com/kaprika-press/card-services/internal/cardsvc/store"
	"github.com/kaprika-press/card-services/internal/db"
	"github.com/kaprika-press/card-services/internal/ipfs"
	"github.com/kaprika-press/card-services/internal/ledger"
	nats "github.com/kaprika-press/card-services/internal/nats"
	"github.com/kaprika-press/card-services/internal/render"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "card"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := svcconfig.Load()

	ctx := context.Background()

	// card store backend
	var cardStore store.CardStore
	switch cfg.StoreBackend {
	case "postgres":
		dbpool, err := db.Connect()
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		log.Printf("pg connection established successfully")

		pg := store.NewPostgresStore(dbpool)
		if err := pg.Init(ctx); err != nil {
			log.Fatalf("Failed to prepare cards table: %v", err)
		}
		cardStore = pg
	case "mongo":
		mongoDb, cancel, err := db.ConnectToMongo()
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer cancel()
		log.Printf("mongo connection established successfully")

		ms := store.NewMongoStore(mongoDb)
		if err := ms.Init(ctx); err != nil {
			log.Fatalf("Failed to prepare cards collection: %v", err)
		}
		cardStore = ms
	default:
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to open card file store: %v", err)
		}
		cardStore = fs
	}

	renderer, err := render.NewRenderer(cfg.AssetsDir, cfg.BaseURL, cfg.FontPath)
	if err != nil {
		log.Fatalf("Failed to load card templates: %v", err)
	}

	// optional collaborators, issuance degrades without them
	var publisher service.ContentPublisher
	if cfg.PublisherConfigured() {
		publisher = ipfs.NewPublisher(cfg.PinEndpoint, cfg.PinToken, cfg.PinGatewayHost)
		log.Infof("content publisher configured for %s", cfg.PinEndpoint)
	}

	var ledgerWriter service.LedgerWriter
	ledgerCfg := ledger.Config{
		RPCURL:          cfg.RPCURL,
		AdminPrivateKey: cfg.AdminPrivateKey,
		ContractAddress: cfg.ContractAddress,
		ChainID:         cfg.ChainID,
	}
	if ledgerCfg.Configured() {
		contract, err := ledger.Shared(ledgerCfg)
		if err != nil {
			log.Errorf("ledger writer disabled: %v", err)
		} else {
			ledgerWriter = contract
		}
	}

	// Connect to NATS
	var events service.EventPublisher
	var eventBroker *broker.Broker
	n, err := nats.Connect()
	if err != nil {
		log.Warnf("unable to connect to NATS server, events disabled: %v", err)
	} else {
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		eventBroker = broker.NewBroker(n.Conn)
		events = eventBroker
	}

	cardService := service.NewCardService(cardStore, renderer, publisher, ledgerWriter,
		events, cfg.BaseURL, cfg.OutputDir)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := 60
	if rateLimitStr := os.Getenv("RATE_LIMIT"); rateLimitStr != "" {
		rateLimit, err = strconv.Atoi(rateLimitStr)
		if err != nil {
			log.Fatalf("Invalid RATE_LIMIT value: %v", err)
		}
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cardService, eventBroker, cfg.OutputDir)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
