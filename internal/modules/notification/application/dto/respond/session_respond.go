package respond

type SessionStatusRespond struct {
	Authenticated bool   `json:"authenticated"`
	Principal     string `json:"principal,omitempty"`
	Username      string `json:"username,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	IsConnected   bool   `json:"isConnected"`
}
