package models

// User is a Last.fm identity as resolved by the handshake. The session
// key authenticates signed API calls on the user's behalf and must
// never leave the server.
type User struct {
	Username   string `json:"username"`
	RealName   string `json:"realName,omitempty"`
	SessionKey string `json:"-"`
}
