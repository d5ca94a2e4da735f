package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-room/configs"
	"github.com/avvvet/bingo-room/internal/auth"
	mongodb "github.com/avvvet/bingo-room/internal/db"
	"github.com/avvvet/bingo-room/internal/gamesvc/broker"
	"github.com/avvvet/bingo-room/internal/gamesvc/db"
	handlers "github.com/avvvet/bingo-room/internal/gamesvc/handlers"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
	"github.com/avvvet/bingo-room/internal/gamesvc/store"
	nats "github.com/avvvet/bingo-room/internal/nats"
	"github.com/avvvet/bingo-room/internal/socketsvc/routes"
	"github.com/avvvet/bingo-room/internal/socketsvc/ws"
)

const SERVICE_NAME = "game"

const archiveRetention = 30 * 24 * time.Hour

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

// repository is what the service needs from game storage.
type repository interface {
	room.Repository
	handlers.GameReader
}

func main() {
	cfg, err := config.LoadGameConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}

	ctx := context.Background()

	// game repository: postgres, or memory when no url is set
	var repo repository = store.NewMemoryStore()
	if cfg.PostgresURL != "" {
		dbpool, err := db.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer dbpool.Close()
		if err := db.Migrate(ctx, dbpool); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		repo = store.NewGameStore(dbpool)
		log.Printf("pg connection established successfully")
	} else {
		log.Warn("POSTGRES_URL not set, games are kept in memory")
	}

	// archive finished rooms to mongo
	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mdb.Client().Disconnect(context.Background())
		if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, store.ArchiveCollection); err != nil {
			log.Warnf("create TTL index on %s: %v", store.ArchiveCollection, err)
		}
		repo = store.NewArchivingRepository(repo, store.NewArchiveStore(mdb, archiveRetention))
		log.Printf("mongo archive enabled on database %s", mdb.Name())
	}

	// live snapshots in redis
	var (
		cache     room.SnapshotCache
		roomCache handlers.RoomCache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		rs := store.NewRedisStore(rdb)
		cache, roomCache = rs, rs
		log.Printf("redis cache connected at %s", cfg.RedisAddr)
	}

	// socket hub, plus a NATS mirror when configured
	var rooms *room.Registry
	hub := ws.NewWs(registryRef(func() *room.Registry { return rooms }))
	fanout := room.Fanout{hub}

	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
	switch {
	case errors.Is(err, nats.ErrDisabled):
		log.Warn("NATS_URL not set, room events are not mirrored")
	case err != nil:
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	default:
		defer n.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
	}

	var b *broker.Broker
	if n != nil {
		b = broker.NewBroker(n.Conn, nil, instanceId)
		fanout = append(fanout, b)
	}

	rooms = room.NewRegistry(room.Config{
		MinPlayers:   cfg.MinPlayers,
		WaitTimeout:  cfg.WaitTimeout,
		DrawInterval: cfg.DrawInterval,
		StaleAfter:   cfg.StaleAfter,
		Stake:        cfg.Stake,
	}, room.Deps{
		Broadcaster: fanout,
		Repository:  repo,
		Cache:       cache,
	})
	rooms.OnRemove(hub.CloseRoom)

	if b != nil {
		b.SetRooms(rooms)
		sub, err := b.SubscribeControl(broker.ControlTopic)
		if err != nil {
			log.Errorf("Error: unable to subscribe to queue %v", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
	}

	users := auth.NewJWTDirectory(cfg.JWTSecret)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(users.JWTAuth(), rooms, repo, roomCache, cfg.Port)
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			h.SetRoutes(r)
		})
		routes.SetRoutes(r, hub, rooms, users)
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service shutdown failed: %+v", SERVICE_NAME, err)
	}
	rooms.Shutdown(shutdownCtx)
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// registryRef resolves the registry lazily; the hub is built before it.
type registryRef func() *room.Registry

func (f registryRef) Get(id string) (*room.Coordinator, bool) {
	return f().Get(id)
}
