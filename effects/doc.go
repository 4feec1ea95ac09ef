// Package effects defines the ordered, declarative side-effect list
// the conversation engine returns instead of performing I/O itself
// (spec §5, §9: "effects pattern, not callbacks"). A Driver applies a
// []Effect in order against a store.NodeStore and an OutboundSender
// (plus optional Resyncer and Reverifier hooks), so the engine stays synchronous and trivially
// testable under a fixed TimeProvider.
package effects
