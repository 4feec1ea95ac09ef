package identity

import "github.com/opd-ai/merkle-tox/dag"

// MemberInfo records when a logical identity first appeared in the
// conversation.
type MemberInfo struct {
	FirstSeenRank uint64
	FirstSeenTs   int64
}

// Cert is one certificate authorizing a device, either delegated
// directly by the master key (IssuerIsDevice == false) or chained
// through another admin device.
type Cert struct {
	IssuerPk       [32]byte
	IssuerIsDevice bool
	Permissions    Permission
	NotAfter       int64
	IssuedAtRank   uint64
}

// RevocationInfo records when and why a device was revoked.
type RevocationInfo struct {
	RevokedAtRank uint64
	Reason        string
}

// Manager holds one conversation's identity/permission state: members,
// every device's certificate set (a device may hold more than one,
// granting multi-path resilience to a single revocation), and
// revocations.
type Manager struct {
	MasterPk    dag.LogicalIdentityPk
	Members     map[dag.LogicalIdentityPk]MemberInfo
	Certs       map[dag.PhysicalDevicePk][]Cert
	Owners      map[dag.PhysicalDevicePk]dag.LogicalIdentityPk
	Revocations map[dag.PhysicalDevicePk]RevocationInfo
}

// NewManager creates an identity manager rooted at masterPk, the
// conversation creator's logical identity key.
func NewManager(masterPk dag.LogicalIdentityPk) *Manager {
	return &Manager{
		MasterPk:    masterPk,
		Members:     make(map[dag.LogicalIdentityPk]MemberInfo),
		Certs:       make(map[dag.PhysicalDevicePk][]Cert),
		Owners:      make(map[dag.PhysicalDevicePk]dag.LogicalIdentityPk),
		Revocations: make(map[dag.PhysicalDevicePk]RevocationInfo),
	}
}

// AddMember records a logical identity's first appearance.
func (m *Manager) AddMember(pk dag.LogicalIdentityPk, rank uint64, ts int64) {
	if _, exists := m.Members[pk]; exists {
		return
	}
	m.Members[pk] = MemberInfo{FirstSeenRank: rank, FirstSeenTs: ts}
}

// AddDevice appends a new certificate authorizing devicePk, owned by
// ownerPk, under cert.
func (m *Manager) AddDevice(devicePk dag.PhysicalDevicePk, ownerPk dag.LogicalIdentityPk, cert Cert) {
	m.Owners[devicePk] = ownerPk
	m.Certs[devicePk] = append(m.Certs[devicePk], cert)
}

// Revoke marks devicePk revoked as of atRank. Only the earliest
// revocation rank is kept: a call at the same or a later rank than an
// existing revocation is ignored, and a call at an earlier rank
// replaces it.
func (m *Manager) Revoke(devicePk dag.PhysicalDevicePk, atRank uint64, reason string) {
	if existing, ok := m.Revocations[devicePk]; ok && existing.RevokedAtRank <= atRank {
		return
	}
	m.Revocations[devicePk] = RevocationInfo{RevokedAtRank: atRank, Reason: reason}
}

func (m *Manager) revokedAtOrBefore(devicePk dag.PhysicalDevicePk, atRank uint64) bool {
	rev, ok := m.Revocations[devicePk]
	return ok && rev.RevokedAtRank <= atRank
}

// IsAuthorizedAt reports whether devicePk holds permission as of
// atRank/atTimestamp via any surviving delegation path to the master
// key (spec §4.3 is_authorized_at).
func (m *Manager) IsAuthorizedAt(devicePk dag.PhysicalDevicePk, permission Permission, atRank uint64, atTimestamp int64) bool {
	if m.revokedAtOrBefore(devicePk, atRank) {
		return false
	}
	for _, cert := range m.Certs[devicePk] {
		if m.walk(devicePk, cert, permission, atRank, atTimestamp, map[[32]byte]bool{}) {
			return true
		}
	}
	return false
}

// walk validates one delegation path starting at cert (the certificate
// held by currentDevice), recursing toward the master key. visited
// guards against circular delegation: a cycle in the path is treated
// as unauthorized, per spec's circular-delegation denial.
func (m *Manager) walk(currentDevice dag.PhysicalDevicePk, cert Cert, permission Permission, atRank uint64, atTimestamp int64, visited map[[32]byte]bool) bool {
	if !cert.Permissions.Has(permission) {
		return false
	}
	if cert.NotAfter < atTimestamp {
		return false
	}

	key := [32]byte(currentDevice)
	if visited[key] {
		return false
	}
	visited[key] = true

	if !cert.IssuerIsDevice {
		return cert.IssuerPk == [32]byte(m.MasterPk)
	}

	issuerDevice := dag.PhysicalDevicePk(cert.IssuerPk)
	if m.revokedAtOrBefore(issuerDevice, atRank) {
		return false
	}
	for _, issuerCert := range m.Certs[issuerDevice] {
		if m.walk(issuerDevice, issuerCert, permission, atRank, atTimestamp, visited) {
			return true
		}
	}
	return false
}

// ReverifySpeculativeForConversation re-checks a set of previously
// verified nodes against current revocation state, returning those
// whose authorization no longer holds (retroactive revocation). The
// caller re-runs this whenever a RevokeDevice node is applied.
func (m *Manager) ReverifySpeculativeForConversation(nodes []*dag.MerkleNode) []*dag.MerkleNode {
	var unverified []*dag.MerkleNode
	for _, n := range nodes {
		required := PermMessage
		if n.IsAdmin() {
			required = PermAdmin
		}
		if !m.IsAuthorizedAt(n.SenderPk, required, n.TopologicalRank, n.NetworkTimestamp) {
			unverified = append(unverified, n)
		}
	}
	return unverified
}
