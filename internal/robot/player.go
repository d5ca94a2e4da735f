package robot

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/bingo"
	"github.com/avvvet/bingo-room/internal/comm"
)

// Player is the decision logic of one robot: it marks every drawn number on
// its card and claims as soon as the marks complete a pattern.
type Player struct {
	UserID string

	card     bingo.Card
	hasCard  bool
	selected map[int]bool
	pending  map[int]bool
	claimed  bool
	done     bool
	won      bool
}

func NewPlayer(userID string) *Player {
	return &Player{
		UserID:   userID,
		selected: make(map[int]bool),
		pending:  make(map[int]bool),
	}
}

// Done reports whether the game this player is in has ended.
func (p *Player) Done() bool { return p.done }

// Won reports whether this player won.
func (p *Player) Won() bool { return p.won }

// Handle consumes one server event and returns the actions to send back.
func (p *Player) Handle(msg *comm.WSMessage) []*comm.WSMessage {
	switch msg.Type {
	case comm.TypeGameState:
		var gs comm.GameState
		if err := json.Unmarshal(msg.Data, &gs); err != nil {
			log.Warnf("robot %s: bad game_state: %v", p.UserID, err)
			return nil
		}
		return p.onGameState(gs)
	case comm.TypeNumberDrawn:
		var nd comm.NumberDrawn
		if err := json.Unmarshal(msg.Data, &nd); err != nil {
			return nil
		}
		return p.mark(nd.Number)
	case comm.TypeNumberSelected:
		var ns comm.NumberSelected
		if err := json.Unmarshal(msg.Data, &ns); err != nil || ns.Player != p.UserID {
			return nil
		}
		delete(p.pending, ns.Number)
		if !ns.Success {
			return nil
		}
		p.selected[ns.Number] = true
		return p.maybeClaim()
	case comm.TypeBingoClaimed:
		var bc comm.BingoClaimed
		if err := json.Unmarshal(msg.Data, &bc); err != nil {
			return nil
		}
		if bc.Success {
			p.done = true
			p.won = bc.Player == p.UserID
		} else if bc.Player == p.UserID {
			log.Warnf("robot %s: claim rejected", p.UserID)
			p.done = true
		}
	case comm.TypeGameCancelled:
		p.done = true
	}
	return nil
}

func (p *Player) onGameState(gs comm.GameState) []*comm.WSMessage {
	if gs.Card != nil {
		p.card = *gs.Card
		p.hasCard = true
	}
	for _, n := range gs.SelectedNumbers {
		p.selected[n] = true
	}
	if gs.Winner != nil || gs.Status == "finished" || gs.Status == "cancelled" {
		p.done = true
		return nil
	}

	var out []*comm.WSMessage
	for _, n := range gs.DrawnNumbers {
		out = append(out, p.mark(n)...)
	}
	return append(out, p.maybeClaim()...)
}

func (p *Player) mark(n int) []*comm.WSMessage {
	if !p.hasCard || p.done || !p.card.Contains(n) || p.selected[n] || p.pending[n] {
		return nil
	}
	p.pending[n] = true
	return []*comm.WSMessage{comm.MustNewMessage(comm.TypeSelectNumber, comm.SelectNumber{Number: n})}
}

func (p *Player) maybeClaim() []*comm.WSMessage {
	if p.claimed || p.done || !p.hasCard || !bingo.CheckWin(p.card, p.selected) {
		return nil
	}
	p.claimed = true
	return []*comm.WSMessage{comm.MustNewMessage(comm.TypeClaimBingo, nil)}
}
