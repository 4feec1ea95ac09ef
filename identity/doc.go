// Package identity implements the per-conversation permission state
// machine: device certificates delegated from a master identity key or
// chained through other admin devices, permission-bitmask checks with
// no-escalation enforcement, multi-path authorization, circular-
// delegation detection, and retroactive revocation.
//
// A device is authorized for a permission at a given DAG rank if any
// delegation path from it up to the conversation's master key carries
// that permission and has not been revoked as of that rank:
//
//	mgr := identity.NewManager(masterPk)
//	mgr.AddDevice(devicePk, ownerPk, identity.Cert{...})
//	ok := mgr.IsAuthorizedAt(devicePk, identity.PermMessage, rank, ts)
package identity
