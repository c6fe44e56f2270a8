package main

import (
	"context"
	"edu-go/pkg/config"
	"edu-go/pkg/email"
	"edu-go/pkg/goauth"
	"edu-go/pkg/initial"
	"edu-go/pkg/kfka"
	"edu-go/pkg/logger"
	"edu-go/pkg/middleware"
	"edu-go/pkg/routes"
	"edu-go/pkg/search"
	"errors"
	"github.com/rs/cors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal("init logger: ", err)
	}
	defer lg.Sync()

	db, err := initial.ConDB(cfg)
	if err != nil {
		lg.Fatal("connect database", "error", err)
	}
	if err := initial.SyncDB(db); err != nil {
		lg.Fatal("migrate database", "error", err)
	}
	es, err := initial.InitES(cfg)
	if err != nil {
		lg.Fatal("init elasticsearch", "error", err)
	}
	if es == nil {
		lg.Warn("ES is not set, course search returns no results")
	}
	rdb := initial.InitRedis(cfg)
	defer rdb.Close()

	mailer, err := email.New(cfg)
	if err != nil {
		lg.Fatal("init mailer", "error", err)
	}

	writer := kfka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer writer.Close()
	events := kfka.NewKafkaPublisher(writer)

	auth := middleware.NewAuth(db, cfg.Secret)
	accounts := &goauth.Service{
		DB:    db,
		Auth:  auth,
		Codes: &goauth.RedisCodes{RDB: rdb},
		Mail:  mailer,
		Log:   lg.With("component", "accounts"),
	}
	handlers := routes.NewHandlers(db, auth, search.NewIndex(es), events, accounts, lg)
	r := routes.NewRouter(handlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := &email.Notifier{DB: db, Mail: mailer, BaseURL: cfg.PublicURL, Log: lg.With("component", "notifier")}
	consumer := kfka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, lg.With("component", "consumer"))
	go func() {
		if err := consumer.Run(ctx, notifier.Handle); err != nil {
			lg.Error("kafka consumer stopped", "error", err)
		}
	}()

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	lg.Info("server started", "addr", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("server failed", "error", err)
	}
}
