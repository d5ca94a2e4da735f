package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-room/configs"
	"github.com/avvvet/bingo-room/internal/auth"
	"github.com/avvvet/bingo-room/internal/robot"
)

const SERVICE_NAME = "robot"

const tokenTTL = 24 * time.Hour

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

func main() {
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}

	count, err := strconv.Atoi(envOr("ROBOT_COUNT", "3"))
	if err != nil || count < 1 {
		log.Fatalf("Invalid ROBOT_COUNT value: %v", err)
	}
	baseURL := envOr("GAME_SERVICE_URL", "http://localhost:8080")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := auth.NewJWTDirectory(secret)

	var wg sync.WaitGroup
	for i := 1; i <= count; i++ {
		userId := fmt.Sprintf("robot-%03d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRobot(ctx, users, baseURL, userId)
		}()
	}

	log.Printf("%d robots playing against %s", count, baseURL)
	wg.Wait()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// runRobot plays games back to back until ctx ends.
func runRobot(ctx context.Context, users *auth.JWTDirectory, baseURL, userId string) {
	for ctx.Err() == nil {
		token, err := users.Issue(userId, tokenTTL)
		if err != nil {
			log.Errorf("issue token for %s: %v", userId, err)
			return
		}

		c := &robot.Client{BaseURL: baseURL, Token: token}
		won, err := c.Play(ctx, robot.NewPlayer(userId))
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			log.Warnf("robot %s: %v", userId, err)
		case won:
			log.Infof("robot %s won a game", userId)
		}

		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
