package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
)

const (
	EventsTopic  = "game.service"
	ControlTopic = "room.control"
)

// Publisher is the publishing half of a NATS connection.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Rooms is the part of the room registry the control topic drives.
type Rooms interface {
	Disband(ctx context.Context, id string) error
}

// Broker mirrors room events onto NATS and executes room control commands
// received from it.
type Broker struct {
	Conn       *nats.Conn
	pub        Publisher
	rooms      Rooms
	InstanceId string
}

func NewBroker(nc *nats.Conn, rooms Rooms, instanceId string) *Broker {
	return &Broker{
		Conn:       nc,
		pub:        nc,
		rooms:      rooms,
		InstanceId: instanceId,
	}
}

// SetRooms binds the registry that control messages act on.
func (b *Broker) SetRooms(rooms Rooms) {
	b.rooms = rooms
}

// Broadcast publishes a room event on the events topic. It implements room.Broadcaster.
func (b *Broker) Broadcast(roomId string, msg *comm.WSMessage) {
	out := *msg
	out.RoomId = roomId

	payload, err := json.Marshal(out)
	if err != nil {
		log.Errorf("Failed to marshal %s for NATS: %v", msg.Type, err)
		return
	}
	if err := b.Publish(EventsTopic, payload); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", EventsTopic, err)
	}
}

// SendTo does nothing: per-player messages stay on the player's socket.
func (b *Broker) SendTo(roomId, userId string, msg *comm.WSMessage) {}

// handles control messages
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case comm.TypeDisbandRoom:
		if b.rooms == nil {
			return
		}
		var request comm.DisbandRoom
		if err := json.Unmarshal(msg.Data, &request); err != nil || request.RoomId == "" {
			log.Errorf("Error decoding disband request: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := b.rooms.Disband(ctx, request.RoomId)
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			log.Debugf("disband %s: room is not hosted by instance %s", request.RoomId, b.InstanceId)
		case err != nil:
			log.Errorf("disband room %s: %v", request.RoomId, err)
		default:
			log.Infof("room %s disbanded by control message", request.RoomId)
		}
	default:
		log.Warnf("unknown control message received: %s", msg.Type)
	}
}

func (b *Broker) SubscribeControl(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	log.Infof("subscribed to topic %s", topic)
	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	return b.pub.Publish(topic, payload)
}
