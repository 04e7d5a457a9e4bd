// Package protocol defines the realtime events exchanged with players over a
// connection and the JSON envelope they travel in.
//
// Every frame is an envelope of the form
//
//	{"event": "move", "data": {"idx": 4, "symbol": "X", "nextTurn": "O"}}
//
// Inbound events form a closed set (Join, Move, GameOver, Reset and the
// transport-generated Disconnect); anything else decodes to ErrUnknownEvent.
package protocol
