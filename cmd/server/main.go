package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/config"
	"github.com/cinebook/cinebook/internal/database"
	"github.com/cinebook/cinebook/internal/handler"
	"github.com/cinebook/cinebook/internal/payment"
	"github.com/cinebook/cinebook/internal/queue"
	"github.com/cinebook/cinebook/internal/repository"
	"github.com/cinebook/cinebook/internal/router"
	"github.com/cinebook/cinebook/internal/service"
	"github.com/cinebook/cinebook/internal/worker"
)

func main() {
	_ = godotenv.Load()

	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	log := base.WithField("app", "cinebook")

	cfg := config.Load()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	// Redis is optional: without it the rate limiter and cache become
	// pass-through middleware.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.WithError(err).Fatal("connect rabbitmq")
	}
	defer amqpConn.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	rooms := repository.NewRoomRepo(db)
	showtimes := repository.NewShowtimeRepo(db)
	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)

	publisher := queue.NewPublisher(amqpConn, log.WithField("component", "publisher"))
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// The scheduler needs the reservation service to release seats and
	// the service needs the scheduler to arm release timers; the
	// function adapter breaks the construction cycle.
	var reservationSvc *service.ReservationService
	scheduler := worker.NewReleaseScheduler(
		worker.ReleaserFunc(func(ctx context.Context, id uint64) error {
			return reservationSvc.Release(ctx, id)
		}),
		30*time.Second,
		log.WithField("component", "scheduler"),
	)
	reservationSvc = service.NewReservationService(db, reservations, seats, showtimes,
		scheduler, publisher, cfg.ReleaseDelay, log.WithField("component", "reservations"))
	paymentSvc := service.NewPaymentService(db, reservations, seats, gateway,
		cfg.Currency, log.WithField("component", "payments"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := worker.NewSweeper(reservationSvc, cfg.SweepInterval, cfg.ExpirationWindow,
		log.WithField("component", "sweeper"))
	go sweeper.Run(ctx)

	consumer := queue.NewConsumer(cfg.AMQPURL, log.WithField("component", "consumer"))
	consumer.Handle(queue.QueueReservationCancelled,
		worker.NewRefundHandler(paymentSvc, log.WithField("component", "refunds")))
	go consumer.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, db, rdb, cfg, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Movies:       handler.NewMovieHandler(movies),
		Rooms:        handler.NewRoomHandler(rooms),
		Showtimes:    handler.NewShowtimeHandler(movies, rooms, showtimes, seats),
		Reservations: handler.NewReservationHandler(reservationSvc, paymentSvc),
		Webhooks:     handler.NewWebhookHandler(paymentSvc),
	})

	go func() {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
