package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/config"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/jobs"
	"flash_promo/internal/notify"
	"flash_promo/internal/promo"
	"flash_promo/internal/queue"
	"flash_promo/internal/reservation"
	"flash_promo/internal/router"
	"flash_promo/internal/store"
	"flash_promo/internal/tasks"
	redisx "flash_promo/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	seed := flag.Bool("seed", false, "insert demo user/store/product/promo before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 数据库
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	st := store.New(db)
	clk := clock.NewSystem()

	// 2. Redis：redis 任务队列必须可用；memory 模式下不可用时关闭限流、缓存与多副本锁
	rdb := connectRedis(ctx, cfg)

	if *seed {
		if err := seedOnce(ctx, rdb, st, clk); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	// 3. 推送下游
	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaPushTopic)
		defer producer.Close()
		dispatcher = producer
	}

	// 4. 核心组件
	var stockCache *redisx.StockCache
	engineOpts := []reservation.Option{
		reservation.WithHoldTTL(cfg.HoldTTL),
		reservation.WithMaxHoldsPerUser(cfg.MaxHoldsPerUser),
	}
	if rdb != nil {
		stockCache = redisx.NewStockCache(rdb, cfg.StockCacheTTL)
		engineOpts = append(engineOpts, reservation.WithStockObserver(stockCache))
	}
	engine := reservation.NewEngine(st, clk, engineOpts...)
	filter := eligibility.NewFilter(st, clk, cfg.EligibilityRadiusM)

	// 5. 任务队列 + 周期触发
	reg := tasks.NewRegistry()
	var (
		enqueuer tasks.Enqueuer
		runQueue func(context.Context) error
	)
	switch cfg.TaskQueue {
	case "redis":
		q := tasks.NewStreamQueue(rdb, reg, cfg.TaskStream, cfg.TaskGroup, cfg.TaskConsumer)
		enqueuer, runQueue = q, q.Run
	default:
		p := tasks.NewPool(reg, cfg.TaskWorkers, 0)
		enqueuer, runQueue = p, p.Run
	}

	jobs.Register(reg, jobs.Deps{
		Scheduler: promo.NewScheduler(st, enqueuer, clk),
		FanOut:    notify.NewFanOut(st, filter, dispatcher, enqueuer, clk, cfg.NotifyBatchSize),
		Engine:    engine,
	})

	var locker tasks.Locker
	if rdb != nil {
		locker = redisx.NewJobLocker(rdb)
	}
	beat := tasks.NewBeat(enqueuer, locker, jobs.Schedule(jobs.Intervals{
		Lifecycle: cfg.LifecycleInterval,
		Notify:    cfg.NotifyInterval,
		Sweep:     cfg.SweepInterval,
	})...)

	// 6. HTTP
	r := gin.Default()
	router.Setup(r, router.Deps{
		Store:         st,
		Engine:        engine,
		Filter:        filter,
		Promos:        promo.NewService(st),
		Clock:         clk,
		RDB:           rdb,
		StockCache:    stockCache,
		AdminToken:    cfg.AdminToken,
		ReserveLimit:  cfg.ReserveRateLimit,
		ReserveWindow: cfg.ReserveRateWindow,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runQueue(gctx) })
	g.Go(func() error {
		beat.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server stopped: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Printf("bye")
}

func connectRedis(ctx context.Context, cfg config.AppConfig) *rd.Client {
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		if cfg.TaskQueue == "redis" {
			log.Fatalf("redis ping: %v", err)
		}
		log.Printf("redis unavailable, running without rate limit and stock cache: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// seedOnce 多副本同时带 -seed 启动时只让一个副本写入。
func seedOnce(ctx context.Context, rdb *rd.Client, st *store.Store, clk clock.Clock) error {
	if rdb != nil {
		locker := redisx.NewJobLocker(rdb)
		ok, err := locker.Acquire(ctx, "seed", 30*time.Second)
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("seed skipped: another replica is seeding")
			return nil
		}
		defer func() {
			if _, err := locker.Release(context.Background(), "seed"); err != nil {
				log.Printf("seed release lock: %v", err)
			}
		}()
	}
	if err := st.Seed(ctx, clk.Now()); err != nil {
		return err
	}
	log.Printf("seed ok")
	return nil
}
