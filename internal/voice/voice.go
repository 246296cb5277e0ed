// Package voice issues media-room join credentials for voice channels.
// Peer negotiation itself happens over voice_signal relays; the media
// backend is LiveKit, with rooms created on demand when the first user
// joins.
package voice

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// JoinInfo contains everything a client needs to join a voice room.
type JoinInfo struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

// Provider generates LiveKit access tokens for voice channels.
type Provider struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// NewProvider creates a token provider. Empty credentials disable voice.
func NewProvider(apiKey, apiSecret, wsURL string) *Provider {
	return &Provider{apiKey: apiKey, apiSecret: apiSecret, wsURL: wsURL}
}

// Enabled reports whether voice credentials are configured.
func (p *Provider) Enabled() bool {
	return p.apiKey != "" && p.apiSecret != ""
}

// JoinToken creates join credentials for a user in a voice channel. The
// media room name is derived from the channel so everyone in the channel
// lands in the same room.
func (p *Provider) JoinToken(channelID, userID, username string) (*JoinInfo, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("voice backend not configured")
	}

	roomName := "naserchat-voice-" + channelID

	at := auth.NewAccessToken(p.apiKey, p.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity(userID).
		SetName(username).
		SetValidFor(time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate voice token: %w", err)
	}

	return &JoinInfo{
		URL:      p.wsURL,
		Token:    token,
		RoomName: roomName,
		Identity: userID,
	}, nil
}
