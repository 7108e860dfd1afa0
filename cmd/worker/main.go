package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campustrack/internal/attendance"
	"campustrack/internal/config"
	"campustrack/internal/queue"
	"campustrack/internal/store"
)

// Worker drains intake audit events from the queue into the audit table.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisDialTimeout, cfg.RedisOpTimeout)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campustrack:audit")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for audit events...")
	for msg := range messages {
		if msg.Type != queue.TypeAudit {
			continue
		}

		var evt attendance.AuditEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad audit event: %v", err)
			continue
		}

		if err := repo.InsertAudit(ctx, evt); err != nil {
			log.Printf("audit insert failed for student %s: %v", evt.StudentID, err)
			continue
		}
		log.Printf("audit recorded: student=%s day=%s outcome=%s", evt.StudentID, evt.Day, evt.Outcome)
	}

	log.Println("worker stopped")
}
