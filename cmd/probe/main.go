// Command probe is a developer client for the coordination core. It
// subscribes to a room or to the presence coordinator, answers pings,
// pretty-prints incoming events, renders presence snapshots as a table,
// and publishes stdin lines as messages on room sockets.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the probe.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the probe-side environment variables.
type Config struct {
	ServerURL      string `env:"CORE_SERVER_URL,default=ws://localhost:8080"`
	Token          string `env:"CORE_TOKEN,required=true"`
	Mode           string `env:"CORE_MODE,default=presence"`
	ConversationID string `env:"CORE_CONVERSATION_ID,default=lobby"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type presenceEntry struct {
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	LastActivity string `json:"last_activity"`
	Device       string `json:"device"`
	TypingIn     string `json:"typing_in"`
}

type snapshot struct {
	Users  []presenceEntry `json:"users"`
	Typing []struct {
		UserID         string `json:"user_id"`
		ConversationID string `json:"conversation_id"`
	} `json:"typing"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	endpoint := config.ServerURL + "/ws/presence"
	if config.Mode == "room" {
		endpoint = config.ServerURL + "/ws/rooms/" + config.ConversationID
	}
	endpoint += "?token=" + config.Token

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Subscribe.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", endpoint, err)
	}
	defer conn.Close()
	color.Greenln(">>> Connected to " + endpoint + " (Ctrl+C to quit)")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	// 4. Publish stdin lines as messages on room sockets.
	if config.Mode == "room" {
		go publishFromStdin(conn)
	}

	// 5. Event reception loop.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream closed: %w", err)
		}
		var evt envelope
		if err := json.Unmarshal(data, &evt); err != nil {
			color.Redln("unreadable frame: " + string(data))
			continue
		}
		render(conn, evt)
	}
}

func render(conn *websocket.Conn, evt envelope) {
	switch evt.Type {
	case "ping":
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
	case "message":
		color.Cyanln(string(evt.Data))
	case "typing_start", "typing_stop":
		color.Grayln(evt.Type + " " + string(evt.Data))
	case "presence_update":
		color.Yellowln(evt.Type + " " + string(evt.Data))
	case "presence_state_snapshot":
		renderSnapshot(evt.Data)
	default:
		fmt.Println(evt.Type + " " + string(evt.Data))
	}
}

func renderSnapshot(data json.RawMessage) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		color.Redln("unreadable snapshot")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Status", "Last activity", "Device", "Typing in"})
	for _, user := range snap.Users {
		table.Append([]string{user.UserID, user.Status, user.LastActivity, user.Device, user.TypingIn})
	}
	table.Render()
	color.Grayln(fmt.Sprintf("%d live typing indicator(s)", len(snap.Typing)))
}

func publishFromStdin(conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		frame, _ := json.Marshal(map[string]any{
			"type": "message",
			"data": map[string]string{"content": line, "type": "text"},
		})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}
