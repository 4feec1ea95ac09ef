package engine

import "errors"

// ErrUnknownConversation is returned when a conversation id has no
// registered identity manager or epoch keys.
var ErrUnknownConversation = errors.New("engine: unknown conversation")

// ErrPermissionEscalation is returned when an AuthorizeDevice grants a
// permission its issuer does not itself hold.
var ErrPermissionEscalation = errors.New("engine: permission escalation")

// ErrInvalidAuthentication is returned when a node's MAC or signature
// fails to verify.
var ErrInvalidAuthentication = errors.New("engine: invalid authentication")

// ErrUnauthorized is returned when the Identity Manager denies a node's
// sender permission to author it.
var ErrUnauthorized = errors.New("engine: sender not authorized")
