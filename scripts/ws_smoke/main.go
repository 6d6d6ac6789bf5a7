package main

import (
	"bytes"
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
	"github.com/google/uuid"

	"github.com/vovakirdan/callrelay/internal/proto"
)

// ws_smoke places one call between two fresh identities and walks it
// through ring, accept, channel validation and hangup.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	caller := flag.String("caller", "smoke-alice", "caller identity")
	callee := flag.String("callee", "smoke-bob", "callee identity")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	alice, err := dial(ctx, *addr, *caller)
	if err != nil {
		return err
	}
	defer alice.Close(websocket.StatusNormalClosure, "bye")

	bob, err := dial(ctx, *addr, *callee)
	if err != nil {
		return err
	}
	defer bob.Close(websocket.StatusNormalClosure, "bye")

	callID := uuid.NewString()
	channel := "smoke-" + callID[:8]

	if err := send(ctx, alice, proto.InboundTypeMakeCall, proto.MakeCallData{
		CallID:      callID,
		To:          *callee,
		From:        proto.Peer{ID: *caller, Name: *caller},
		ChannelName: channel,
	}); err != nil {
		return err
	}

	var incoming proto.IncomingCallData
	if err := expect(ctx, bob, proto.EventIncomingCall, &incoming); err != nil {
		return err
	}
	fmt.Printf("incoming-call: id=%s from=%s channel=%s\n", incoming.CallID, incoming.From.ID, incoming.ChannelName)

	if err := send(ctx, bob, proto.InboundTypeAcceptCall, proto.AcceptCallData{CallID: callID, ChannelName: channel}); err != nil {
		return err
	}

	var accepted proto.CallAcceptedData
	if err := expect(ctx, alice, proto.EventCallAccepted, &accepted); err != nil {
		return err
	}
	fmt.Printf("call-accepted: channel=%s\n", accepted.ChannelName)

	authorized, err := validateChannel(ctx, *addr, channel, *caller)
	if err != nil {
		return err
	}
	fmt.Printf("validate-channel: authorized=%v\n", authorized)
	if !authorized {
		return fmt.Errorf("caller not authorized for %s", channel)
	}

	if err := send(ctx, alice, proto.InboundTypeEndCall, nil); err != nil {
		return err
	}

	var ended proto.CallEndedData
	if err := expect(ctx, bob, proto.EventCallEnded, &ended); err != nil {
		return err
	}
	fmt.Printf("call-ended: id=%s\n", ended.CallID)
	return nil
}

func dial(ctx context.Context, addr, userID string) (*websocket.Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	q.Set("userName", userID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", userID, err)
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	inbound := proto.Inbound{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		inbound.Data = raw
	}
	if err := wsjson.Write(ctx, conn, inbound); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// expect reads frames until event arrives and decodes its data into out.
func expect(ctx context.Context, conn *websocket.Conn, event string, out any) error {
	for {
		var frame struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("waiting for %s: %w", event, err)
		}
		if frame.Error != nil {
			return fmt.Errorf("server error: %s: %s", frame.Error.Code, frame.Error.Msg)
		}
		if frame.Event == proto.EventCallFailed {
			return fmt.Errorf("call failed: %s", frame.Data)
		}
		if frame.Event != event {
			continue
		}
		if err := json.Unmarshal(frame.Data, out); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return nil
	}
}

func validateChannel(ctx context.Context, wsAddr, channel, userID string) (bool, error) {
	httpAddr := strings.Replace(wsAddr, "ws", "http", 1)
	httpAddr = strings.TrimSuffix(httpAddr, "/ws") + "/validate-channel"

	body, err := json.Marshal(map[string]string{"channelName": channel, "userId": userID})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, httpAddr, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("validate-channel: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Authorized bool `json:"authorized"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode validate-channel: %w", err)
	}
	return out.Authorized, nil
}
