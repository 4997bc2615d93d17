package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateMatch = 103
	MsgTypeJoinMatch   = 101
	MsgTypeSubmitTeam  = 201
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// demoTeam builds a small roster for manual testing.
func demoTeam() []map[string]interface{} {
	basic := map[string]interface{}{"name": "strike", "atkMultiplier": 1.0}
	skill := map[string]interface{}{"name": "surge", "atkMultiplier": 1.5}
	ult := map[string]interface{}{"name": "overload", "atkMultiplier": 2.5}
	return []map[string]interface{}{
		{
			"name": "ash", "rarity": "common", "level": 10,
			"hp": 500, "atk": 80, "def": 40, "spd": 95,
			"critRate": 0.1, "critDmg": 0.5,
			"basicAttack": basic, "skillAttack": skill, "ultimateAttack": ult,
		},
		{
			"name": "brel", "rarity": "rare", "level": 12,
			"hp": 650, "atk": 60, "def": 70, "spd": 80,
			"critRate": 0.05, "critDmg": 0.5,
			"basicAttack": basic, "skillAttack": skill,
		},
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	wallet := flag.String("wallet", "0xdemo", "wallet address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Client started. Commands: create | join <match_id> | team")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "create":
				req := map[string]string{"wallet": *wallet, "mode": "pvp"}
				data, _ := json.Marshal(req)
				if err := send(c, MsgTypeCreateMatch, data); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: create match")
			case "join":
				req := map[string]string{"wallet": *wallet}
				if len(fields) > 1 {
					req["match_id"] = fields[1]
				}
				data, _ := json.Marshal(req)
				if err := send(c, MsgTypeJoinMatch, data); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: join match")
			case "team":
				action := map[string]interface{}{"type": "submit_team", "team": demoTeam()}
				data, _ := json.Marshal(action)
				if err := send(c, MsgTypeSubmitTeam, data); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: team submission")
			default:
				log.Printf("Unknown command: %s", fields[0])
			}
		}
	}
}
