// Package engine implements the conversation engine (spec §4.6): the
// per-conversation verification pipeline (handle_node), the authoring
// path (author_node), and conversation-key rotation
// (rotate_conversation_key). The engine never performs I/O itself; every
// call returns an ordered []effects.Effect for a driver to apply,
// keeping verification deterministic under a fixed crypto.TimeProvider
// (spec §9, "effects pattern, not callbacks").
package engine
