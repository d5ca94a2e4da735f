package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-room/configs"
	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/broker"
	natscli "github.com/avvvet/bingo-room/internal/nats"
)

const SERVICE_NAME = "ctl"

const usage = `usage:
  ctlsvc disband <room-id>   disband a room on whichever instance hosts it
  ctlsvc watch               print room events mirrored on NATS`

func init() {
	config.LoadEnv(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + config.CreateUniqueInstance(SERVICE_NAME))
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	n, err := natscli.Connect(os.Getenv("NATS_URL"), os.Getenv("NATS_TOKEN"), SERVICE_NAME)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	switch os.Args[1] {
	case "disband":
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		if err := PublishDisband(n, os.Args[2]); err != nil {
			log.Errorf("disband %s: %v", os.Args[2], err)
			os.Exit(1)
		}
	case "watch":
		watch(n)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// PublishDisband asks every game service instance to disband roomId.
func PublishDisband(n *natscli.Nats, roomId string) error {
	msg, err := comm.NewMessage(comm.TypeDisbandRoom, comm.DisbandRoom{RoomId: roomId})
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := n.Conn.Publish(broker.ControlTopic, payload); err != nil {
		return err
	}
	return n.Conn.Flush()
}

func watch(n *natscli.Nats) {
	sub, err := n.Conn.Subscribe(broker.EventsTopic, func(m *nats.Msg) {
		var msg comm.WSMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Errorf("Failed to unmarshal WSMessage: %v", err)
			return
		}
		fmt.Printf("%s %-16s %s\n", msg.RoomId, msg.Type, msg.Data)
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", broker.EventsTopic, err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
