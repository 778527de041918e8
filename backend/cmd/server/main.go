package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/devkurtc/prd-tool-project-sub000/backend/config"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/auth"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/cache"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/httpapi"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/httpapi/middleware"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/room"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/store"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	if cfg.Auth.Secret != "" {
		auth.SetSecret(cfg.Auth.Secret)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	kafkaCfg := sarama.NewConfig()
	// SyncProducer requires Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("failed to connect kafka: %v", err)
	}
	defer producer.Close()

	kafkaSem := collab.NewSemaphoreControl()
	wsSem := collab.NewSemaphoreControl()

	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	documentStore := store.NewDocumentStore(db)
	accessStore := store.NewAccessStore(db)
	presenceCache := cache.NewRedisPresence(rdb)

	state := collab.NewStateStore(documentStore, cfg.Collab.EvictOnIdle)
	svc := collab.NewService(state, dispatcher)
	hub := room.NewHub(state, accessStore, documentStore, presenceCache,
		time.Duration(cfg.Collab.TypingTTLMs)*time.Millisecond,
		time.Duration(cfg.Collab.PresenceTTLS)*time.Second)
	registry := auth.NewRegistry()
	manager := ws.NewManager(hub, svc, wsSem, registry)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	presence := httpapi.NewPresenceHandler(presenceCache)

	collabGroup := r.Group("/collab")
	collabGroup.Use(middleware.AuthMiddleware())
	collabGroup.GET("/ws", manager.WebSocketConnect)
	collabGroup.GET("/presence", presence.ListDocuments)
	collabGroup.GET("/presence/:docId", presence.RoomMembers)
	r.GET("/collab/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	log.Printf("collab server listening on :%d", cfg.Running.Port)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Running.Port)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
