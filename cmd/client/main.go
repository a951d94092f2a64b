// Command client is a terminal participant for a collaboration
// session. It mirrors remote edits into a local buffer, broadcasts
// lines typed on stdin, and prints execution output as it arrives
// from the room.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/collab-code-share/backend/internal/agent"
	"github.com/collab-code-share/backend/internal/ws"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "base URL of the collaboration server")
	sessionID := flag.String("session", "", "session id to join (created when empty)")
	language := flag.String("language", "", "language tag for a newly created session")
	flag.Parse()

	id := *sessionID
	if id == "" {
		created, err := createSession(*server, *language)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		id = created
		fmt.Printf("Created session %s\n", id)
	}

	conn, err := dial(*server)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	a := agent.New(id, &wsEmitter{conn: conn})
	a.SetOnApply(func(code string) {
		fmt.Printf("--- buffer updated ---\n%s\n", code)
	})
	a.SetOnPresence(func(userID string, joined bool) {
		if joined {
			fmt.Printf("* %s joined\n", userID)
		} else {
			fmt.Printf("* %s left\n", userID)
		}
	})
	a.SetOnError(func(message string) {
		fmt.Printf("! server error: %s\n", message)
	})

	if err := a.Join(); err != nil {
		log.Fatalf("Failed to join session: %v", err)
	}

	// Read loop: feed every server event to the agent. Execution
	// output is printed from here so it appears as soon as the room
	// fanout delivers it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		printed := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev ws.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			a.HandleEvent(&ev)
			entries := a.Log()
			if printed > len(entries) {
				// The bounded log discarded entries we already printed.
				printed = len(entries)
			}
			for _, entry := range entries[printed:] {
				fmt.Print(entry)
				if !strings.HasSuffix(entry, "\n") {
					fmt.Println()
				}
				printed++
			}
		}
	}()

	fmt.Println("Type code lines to share them. Commands: :run, :code, :quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case ":quit":
			return
		case ":code":
			fmt.Println(a.Code())
		case ":run":
			if err := requestRun(*server, id, a.Language(), a.Code()); err != nil {
				fmt.Printf("! run failed: %v\n", err)
			}
		default:
			code := a.Code()
			if code != "" && !strings.HasSuffix(code, "\n") {
				code += "\n"
			}
			if _, err := a.LocalEdit(code + line + "\n"); err != nil {
				log.Fatalf("Failed to send edit: %v", err)
			}
		}
		select {
		case <-done:
			log.Fatal("Connection closed by server")
		default:
		}
	}
}

// wsEmitter sends agent events over a shared WebSocket connection.
type wsEmitter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (e *wsEmitter) Emit(ev *ws.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(ev)
}

// dial opens the relay WebSocket for the given HTTP base URL.
func dial(server string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/collab"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	return conn, nil
}

// createSession asks the server for a fresh session id.
func createSession(server, language string) (string, error) {
	payload, err := json.Marshal(map[string]string{"language": language})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(server+"/api/session", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

// requestRun submits the buffer for execution. Output is not read
// from the response; it arrives through the room fanout instead.
func requestRun(server, sessionID, language, code string) error {
	payload, err := json.Marshal(map[string]string{
		"sessionId": sessionID,
		"language":  language,
		"code":      code,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(server+"/api/execute", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
