// match/interfaces.go
package match

// Broadcaster abstracts sending a frame to every session in a match.
type Broadcaster interface {
	BroadcastToMatch(matchID string, msgID uint16, data []byte) error
}
