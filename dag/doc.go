// Package dag implements the per-conversation Merkle DAG node format: the
// authored MerkleNode structure, its Content/ControlAction/NodeAuth
// variants, the encrypted-and-padded WireNode wire form, and the
// pack_wire/unpack_wire transforms between them.
//
// A node's hash is computed over its unauthenticated prefix (every field
// except authentication) so that any sender can compute it before a MAC
// or signature is attached:
//
//	n := &dag.MerkleNode{Content: dag.Text("hello")}
//	h := n.Hash()
//
// Content nodes (Text, Blob, KeyWrap) are authenticated by a MAC keyed on
// the conversation's MAC key; admin nodes (ControlAction) are signed with
// the conversation id mixed into the preimage so a signature cannot be
// replayed into a different conversation. See crypto.Sign/crypto.Verify.
package dag
