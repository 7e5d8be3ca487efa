package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/deemkeen/loxodon/activitypub"
	"github.com/deemkeen/loxodon/cache"
	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/mastodon"
	"github.com/deemkeen/loxodon/queue"
	"github.com/deemkeen/loxodon/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	log.Printf("Starting %s", util.GetNameAndVersion())

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	// Run database migrations
	log.Println("Running database migrations...")
	database := db.GetDB()
	if err := database.RunMigrations(); err != nil {
		log.Printf("Warning: Migration errors (may be normal if tables exist): %v", err)
	}
	log.Println("Database migrations complete")

	wmLogger := watermill.NewStdLogger(false, false)
	deliveryQueue, err := queue.NewQueue(conf, wmLogger)
	if err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the delivery consumer if enabled
	if conf.Conf.WithConsumer {
		env := &activitypub.Env{DB: database, Conf: conf}
		if err := activitypub.StartDeliveryConsumer(ctx, env, deliveryQueue); err != nil {
			log.Fatalln(err)
		}
	}

	// Pregenerate home timelines in the background
	timelineCache := cache.NewMemoryCache()
	startPregenerationWorker(conf, database, timelineCache)

	// Expose prometheus metrics
	go func() {
		addr := fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.MetricsPort)
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("Serving metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalln(err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Stopping delivery queue")
	cancel()
	if err := deliveryQueue.Close(); err != nil {
		log.Fatalln(err)
	}
}

// startPregenerationWorker starts a background worker that periodically
// recomputes every local actor's home timeline into the cache
func startPregenerationWorker(conf *util.AppConfig, database *db.DB, timelineCache cache.Cache) {
	interval := time.Duration(conf.Conf.PregenInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log.Println("Starting timeline pregeneration worker...")

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			pregenerateAllTimelines(conf, database, timelineCache)
		}
	}()
}

func pregenerateAllTimelines(conf *util.AppConfig, database *db.DB, timelineCache cache.Cache) {
	err, actors := database.ReadLocalActors()
	if err != nil {
		log.Printf("Pregenerate: Failed to read local actors: %v", err)
		return
	}

	if actors == nil || len(*actors) == 0 {
		return
	}

	for _, actor := range *actors {
		if err := mastodon.PregenerateTimelines(conf.Conf.SslDomain, database, timelineCache, &actor); err != nil {
			log.Printf("Pregenerate: Failed for %s: %v", actor.Id, err)
		}
	}
}
