package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/config"
	"github.com/iliyamo/youkebox/internal/database"
	"github.com/iliyamo/youkebox/internal/handler"
	"github.com/iliyamo/youkebox/internal/logging"
	"github.com/iliyamo/youkebox/internal/middleware"
	"github.com/iliyamo/youkebox/internal/player"
	"github.com/iliyamo/youkebox/internal/queue"
	"github.com/iliyamo/youkebox/internal/repository"
	"github.com/iliyamo/youkebox/internal/router"
	"github.com/iliyamo/youkebox/internal/service"
	"github.com/iliyamo/youkebox/internal/youtube"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogJSON)
	log := logging.For("server")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBMaxOpen)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("redis unavailable; cache and rate limit disabled, commands kept in memory")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var commands player.CommandTable = player.NewMemoryTable()
	if cfg.Player.CommandBackend == "redis" && rdb != nil {
		commands = player.NewRedisTable(rdb, player.DefaultCommandsKey)
	}

	publisher := service.NewEventPublisher(cfg.AMQPURL, logging.For("events"))
	defer publisher.Close()

	rooms := repository.NewRoomRepo(db)
	stores := repository.NewStorePool(db, cfg.DBMaxOpen)
	open := func(ctx context.Context) (player.Store, error) {
		s, err := stores.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	sup := player.NewSupervisor(rooms, open, commands, publisher, player.Options{
		Tick:        cfg.Player.Tick,
		IdleBackoff: cfg.Player.IdleBackoff,
		MaxRetries:  cfg.Player.MaxRetries,
		ResetSkip:   cfg.Player.ResetSkip,
		OpenTimeout: cfg.Player.OpenTimeout,
	}, logging.For("player"))
	if err := sup.Start(ctx); err != nil {
		log.WithError(err).Fatal("start playlist workers")
	}

	go func() {
		err := queue.StartPlaybackConsumer(ctx, cfg.AMQPURL, "logs", logging.For("consumer"))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("playback consumer stopped")
		}
	}()

	catalog := youtube.NewClient(cfg.YouTubeBaseURL, cfg.YouTubeAPIKey)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logging.For("http")))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, logging.For("ratelimit")))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), logging.For("auth")), cfg.JWTSecret)
	router.RegisterPlaylist(e, handler.NewPlaylistHandler(repository.NewVideoRepo(db), rooms, catalog, sup, logging.For("playlist")), cfg.JWTSecret)
	router.RegisterRooms(e, handler.NewRoomHandler(rooms, sup, logging.For("rooms")), cfg.JWTSecret)
	router.RegisterYouTube(e, handler.NewYouTubeHandler(catalog, logging.For("youtube")), middleware.NewRedisCache(cfg.Cache, rdb))

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "rooms": len(sup.Rooms())}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sup.Wait()
	log.Info("stopped")
}

// requestLogger writes one logrus line per request.
func requestLogger(log *logrus.Entry) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
