// Command simulator floods the action topic with synthetic player
// actions against a live session, for load testing the consumer path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine/rules"
	"github.com/gamehub-engine/internal/kafka"
)

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-actions", "Kafka topic")
	sessionID := flag.String("session", "", "Target session ID (required)")
	gameType := flag.String("game", string(domain.GameTypeQuantumDAO), "Game type of the target session")
	totalPlayers := flag.Int("players", 4, "Number of simulated players")
	actionsPerSecond := flag.Int("rate", 10, "Actions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("-session is required")
	}
	gt := domain.GameType(*gameType)
	if !domain.IsValidGameType(gt) {
		log.Fatalf("unknown game type %q", *gameType)
	}

	brokerList := strings.Split(*brokers, ",")
	registry := rules.NewRegistry()

	playerIDs := make([]string, *totalPlayers)
	for i := range playerIDs {
		playerIDs[i] = fmt.Sprintf("sim-player-%d", i+1)
	}

	fmt.Printf("Simulating %d players against session %s (%s) at %d actions/sec\n",
		*totalPlayers, *sessionID, gt, *actionsPerSecond)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendAction := func() {
		actorIdx := rand.Intn(len(playerIDs))
		actorID := playerIDs[actorIdx]
		opponents := make([]string, 0, len(playerIDs)-1)
		for i, id := range playerIDs {
			if i != actorIdx {
				opponents = append(opponents, id)
			}
		}

		action := registry.RandomAction(gt, actorID, opponents)
		submission := kafka.ActionSubmission{
			SessionID: *sessionID,
			PlayerID:  actorID,
			Type:      action.Type,
			Data:      action.Data,
		}

		data, err := json.Marshal(submission)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(*sessionID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
		}
	}

	interval := time.Second / time.Duration(*actionsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var actionCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	fmt.Println("Press Ctrl+C to stop")
	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nDuration reached, shutting down...")
				shutdown()
				return
			}
			sendAction()
			atomic.AddInt64(&actionCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Actions: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&actionCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
