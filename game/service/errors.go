package service

import (
	"errors"

	"github.com/wricardo/tictactoe-arena/game/protocol"
)

var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrIdentityMismatch   = errors.New("name does not match authenticated identity")
	ErrUnauthenticated    = errors.New("connection is not authenticated")
	ErrNotJoined          = errors.New("connection has not joined")
	ErrNotInSession       = errors.New("connection is not in a game")
	ErrSessionNotFound    = errors.New("game not found")
	ErrSessionNotActive   = errors.New("game is not in progress")
	ErrAlreadyInSession   = errors.New("identity already has a game in progress")
	ErrSameIdentity       = errors.New("a game needs two distinct identities")
	ErrIllegalMove        = errors.New("illegal move")
	ErrGameNotOver        = errors.New("game is not over")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Error codes sent to clients in error events
const (
	CodeIdentityNotFound   = "IdentityNotFound"
	CodeIdentityMismatch   = "IdentityMismatch"
	CodeUnauthenticated    = "Unauthenticated"
	CodeNotJoined          = "NotJoined"
	CodeNotInSession       = "NotInSession"
	CodeSessionNotFound    = "SessionNotFound"
	CodeSessionNotActive   = "SessionNotActive"
	CodeIllegalMove        = "IllegalMove"
	CodeGameNotOver        = "GameNotOver"
	CodePersistenceFailure = "PersistenceFailure"
	CodeUnknownEvent       = "UnknownEvent"
	CodeMalformed          = "Malformed"
	CodeInternal           = "Internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrIdentityNotFound, CodeIdentityNotFound},
	{ErrIdentityMismatch, CodeIdentityMismatch},
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrNotJoined, CodeNotJoined},
	{ErrNotInSession, CodeNotInSession},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrSessionNotActive, CodeSessionNotActive},
	{ErrAlreadyInSession, CodeSessionNotActive},
	{ErrIllegalMove, CodeIllegalMove},
	{ErrGameNotOver, CodeGameNotOver},
	{ErrPersistenceFailure, CodePersistenceFailure},
	{protocol.ErrUnknownEvent, CodeUnknownEvent},
	{protocol.ErrMalformed, CodeMalformed},
}

// ErrorCode maps an error to the code reported to clients
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ErrorEvent builds the error event sent back to the offending connection.
// Internal errors are reported without their detail.
func ErrorEvent(err error) protocol.Error {
	code := ErrorCode(err)
	if code == CodeInternal {
		return protocol.Error{Code: code, Message: "internal error"}
	}
	return protocol.Error{Code: code, Message: err.Error()}
}
