package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/reviews"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type backend struct {
	products catalog.Store
	orders   orders.Store
	ledger   interface {
		orders.Ledger
		inventory.Restocker
	}
	users auth.Users
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	var be backend
	switch cfg.StoreBackend {
	case config.BackendMemory:
		products := catalog.NewMemoryStore()
		be = backend{
			products: products,
			orders:   orders.NewMemoryStore(),
			ledger:   &inventory.StoreLedger{Products: products, Metrics: reg},
		}
		log.Printf("using in-memory stores")
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		be = backend{
			products: &catalog.PostgresStore{DB: db},
			orders:   &orders.Repo{DB: db},
			ledger:   &inventory.PostgresLedger{DB: db, Metrics: reg},
			users:    &auth.PostgresUsers{DB: db},
		}
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// Redis is a fast path only; the API runs without it.
	var rstore *redisx.Store
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis %s unreachable, continuing without it: %v", cfg.RedisAddr, err)
		} else {
			rstore = &redisx.Store{RDB: rdb}
		}
		cancel()
	}

	var (
		publisher orders.Publisher
		producer  *kafkax.Producer
	)
	if cfg.UseKafka() {
		producer = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		producer.Start()
		publisher = kafkax.EventPublisher{Producer: producer}
	} else {
		// no broker: cancellations are restocked in-process
		restock := &inventory.Service{Ledger: be.ledger, ServiceName: cfg.ServiceName + "-inventory"}
		if rstore != nil {
			restock.Dedup = rstore
		}
		publisher = orders.PublisherFunc(func(ctx context.Context, topic string, env orders.Envelope) error {
			if topic != orders.TopicOrderCancelled {
				return nil
			}
			return restock.Handle(context.WithoutCancel(ctx), env)
		})
		log.Printf("KAFKA_BROKERS not set, dispatching events in-process")
	}

	svc := &orders.Service{
		Products:    be.products,
		Orders:      be.orders,
		Ledger:      be.ledger,
		Publisher:   publisher,
		Users:       be.users,
		Metrics:     reg,
		ServiceName: cfg.ServiceName,
	}
	oh := &httpx.OrdersHandler{Service: svc, Timeout: cfg.RequestTimeout}
	if rstore != nil {
		oh.Cache = rstore
		oh.Idem = rstore
	}
	engine := &reviews.Engine{
		Products:    be.products,
		Orders:      be.orders,
		Publisher:   publisher,
		Metrics:     reg,
		ServiceName: cfg.ServiceName,
	}
	router := httpx.NewRouter(httpx.API{
		Orders:  oh,
		Reviews: &httpx.ReviewsHandler{Engine: engine, Timeout: cfg.RequestTimeout},
		Auth:    &auth.Authenticator{Secret: cfg.JWTSecret, Users: be.users},
		Metrics: reg,
		Timeout: 3 * cfg.RequestTimeout,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	if producer != nil {
		producer.Close()
		producer.WaitClosed()
	}
}
