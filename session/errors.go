package session

import "errors"

// ErrPeerUnavailable names the condition of a peer marked unavailable.
// No function in this package returns it: outbound traffic to such a
// peer is dropped without an error (see Manager.send) until it returns
// to available.
var ErrPeerUnavailable = errors.New("session: peer unavailable")

// ErrUnknownSession names the condition of no session existing for a
// (peer, conversation) pair. No function in this package returns it:
// Manager.Session reports a missing session with a false result, and
// every other entry point creates the session on demand.
var ErrUnknownSession = errors.New("session: unknown peer/conversation pair")
