package chat

import "fmt"

// Failure modes surfaced to clients. Authentication failures terminate the
// connection attempt; everything else becomes an `error` event on the
// offending connection and the connection stays open. Store failures map to
// the two fixed messages below: the driver detail stays in the server log.
var (
	ErrMissingToken   = fmt.Errorf("authentication error: missing token")
	ErrInvalidToken   = fmt.Errorf("invalid token")
	ErrEmptyContent   = fmt.Errorf("message content is required")
	ErrMissingTarget  = fmt.Errorf("missing chatId or isGroup")
	ErrSendFailed     = fmt.Errorf("failed to send message")
	ErrMarkReadFailed = fmt.Errorf("failed to mark messages read")
)
