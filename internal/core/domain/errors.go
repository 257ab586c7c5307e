package domain

import "errors"

var (
	ErrStreamNotFound       = errors.New("stream not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPerformerNotFound    = errors.New("performer not found")
	ErrPeekInNotFound       = errors.New("peek-in request not found")
	ErrForbidden            = errors.New("forbidden")
	ErrStreamOffline        = errors.New("stream offline")
	ErrTokenNotEnough       = errors.New("insufficient token balance")
	ErrNotEnoughTierLimit   = errors.New("spend tier threshold not met")
	ErrParticipantJoinLimit = errors.New("participant limit reached")
	ErrStreamServer         = errors.New("stream server error")
	ErrBadRequest           = errors.New("bad request")
	ErrRoleConflict         = errors.New("presence role conflict")
)
