package livekit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/vovakirdan/callrelay/internal/callengine"
)

const defaultTokenTTL = time.Hour

// LiveKitEngine implements callengine.Engine using LiveKit as the media backend.
type LiveKitEngine struct {
	apiKey    string
	apiSecret string
	wsURL     string
	ttl       time.Duration
}

// New creates a new LiveKitEngine. A non-positive ttl falls back to one hour.
func New(apiKey, apiSecret, wsURL string, ttl time.Duration) *LiveKitEngine {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &LiveKitEngine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		ttl:       ttl,
	}
}

// JoinInfo creates a room-join token for the channel. LiveKit creates the
// room when the first participant joins, so the channel name is the room.
func (e *LiveKitEngine) JoinInfo(_ context.Context, channelName, userID, displayName string) (*callengine.JoinInfo, error) {
	if channelName == "" || userID == "" {
		return nil, errors.New("channel and identity are required")
	}

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     channelName,
	}
	at.AddGrant(grant).
		SetIdentity(userID).
		SetName(displayName).
		SetValidFor(e.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &callengine.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: channelName,
		Identity: userID,
	}, nil
}

// Ensure LiveKitEngine implements callengine.Engine
var _ callengine.Engine = (*LiveKitEngine)(nil)
