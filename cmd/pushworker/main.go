package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flash_promo/internal/config"
	"flash_promo/internal/queue"
)

// pushworker 消费 Kafka 推送批次，交给推送通道（这里只打日志）。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatalf("KAFKA_BROKERS must not be empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaPushTopic, cfg.KafkaPushGroupID, queue.LogSender{})
	defer consumer.Close()

	log.Printf("push worker consuming topic=%s group=%s", cfg.KafkaPushTopic, cfg.KafkaPushGroupID)
	consumer.Run(ctx)
	log.Printf("push worker stopped")
}
