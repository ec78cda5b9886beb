// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Seat token was invalid or expired.
	InvalidUserIDError    = 3002 // Token names a player that holds no seat at this table.
	InvalidGameIDError    = 3003 // Token was issued for a different game.
	ReplacedConnection    = 3004 // The same seat connected again from elsewhere.
	SlowConsumerError     = 3005 // Outbound queue overflowed.
)
