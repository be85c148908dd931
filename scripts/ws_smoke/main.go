package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "chat token; a guest token is requested when empty")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *token == "" {
		guest, err := guestToken(ctx, *addr)
		if err != nil {
			return err
		}
		*token = guest
	}

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+url.QueryEscape(*token), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(event string, data any) error {
		f, err := proto.NewFrame(event, data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, f); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}

	for _, step := range []struct {
		event string
		data  any
	}{
		{proto.EventRegisterPresence, nil},
		{proto.EventJoinChat, nil},
		{proto.EventSendMessage, proto.SendMessageData{Body: *text, Kind: proto.KindUser}},
	} {
		if err := mustSend(step.event, step.data); err != nil {
			return err
		}
	}

	for {
		var f proto.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received event=%s\n", f.Event)

		push, err := proto.Decode(f)
		if err != nil {
			fmt.Printf("Raw data: %s\n", string(f.Data))
			continue
		}
		switch p := push.(type) {
		case proto.NewMessage:
			m := p.Message
			fmt.Printf("Message: id=%s author=%s body=%q at=%s\n", m.ID, m.AuthorName, m.Body, m.SentAt.Display(time.RFC3339))
			return nil
		case proto.RosterUpdate:
			fmt.Printf("Roster: event=%s count=%d\n", p.Event, p.Roster.Count)
		case proto.ServerError:
			return fmt.Errorf("server error %s: %s", p.Code, p.Message)
		}
	}
}

// guestToken asks the backend next to addr for a guest token.
func guestToken(ctx context.Context, addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse addr: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
	u.Path = "/api/guest"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request guest token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("guest token: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode guest token: %w", err)
	}
	return body.Token, nil
}
