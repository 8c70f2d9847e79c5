// ws_smoke drives a two-player game far enough to prove the server wiring:
// guest auth, room creation over REST, two sockets, a started game and a few
// broadcast frames.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cardroom/internal/service"
)

func main() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	service.InitJWT(jwtSecret)

	idA, idB := uuid.NewString(), uuid.NewString()
	tokenA, err := service.GenerateJWT(idA, "smokeA")
	if err != nil {
		log.Fatalf("gen token A: %v", err)
	}
	tokenB, err := service.GenerateJWT(idB, "smokeB")
	if err != nil {
		log.Fatalf("gen token B: %v", err)
	}

	// create a room as A
	base := fmt.Sprintf("http://127.0.0.1:%s/api/v1", port)
	body := bytes.NewBufferString(`{"name":"smoke"}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/rooms", body)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("create room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("create room: status %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatalf("decode room: %v", err)
	}
	log.Printf("room created: %s", created.ID)

	dialer := websocket.DefaultDialer

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	dial := func(token string) *websocket.Conn {
		url := fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s&room=%s", port, token, created.ID)
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			log.Fatalf("dial: %v", err)
		}
		return conn
	}
	connA := dial(tokenA)
	defer connA.Close()
	connB := dial(tokenB)
	defer connB.Close()

	// drain until both have their snapshot
	drainUntil := func(conn *websocket.Conn, typ string) {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				continue
			}
			var obj map[string]any
			_ = json.Unmarshal(msg, &obj)
			if t, ok := obj["type"].(string); ok && t == typ {
				return
			}
		}
		log.Fatalf("timed out waiting for %q frame", typ)
	}
	drainUntil(connA, "snapshot")
	drainUntil(connB, "snapshot")

	// owner starts the game
	if err := connA.WriteMessage(websocket.TextMessage, []byte(`{"type":"start_game"}`)); err != nil {
		log.Fatalf("write start: %v", err)
	}

	readFrames := func(conn *websocket.Conn, name string, n int) {
		for i := 0; i < n; i++ {
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("%s read error: %v", name, err)
				return
			}
			log.Printf("%s got: %s", name, string(msg))
		}
	}

	readFrames(connA, "A", 1)
	readFrames(connB, "B", 1)

	log.Println("smoke test finished")
}
