package objects

// ErrorResponse is the envelope every failed HTTP request returns.
type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
