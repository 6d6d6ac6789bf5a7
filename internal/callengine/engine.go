package callengine

import "context"

// JoinInfo contains information needed to join a media channel.
type JoinInfo struct {
	URL      string `json:"url"`       // WebSocket URL (e.g., ws://localhost:7880)
	Token    string `json:"token"`     // access token for the media server
	RoomName string `json:"room_name"` // media room, equal to the channel name
	Identity string `json:"identity"`  // participant identity in the room
}

// Engine abstracts the media backend. The relay never carries media; an
// engine only mints credentials for members the channel gate already
// authorized.
type Engine interface {
	JoinInfo(ctx context.Context, channelName, userID, displayName string) (*JoinInfo, error)
}
