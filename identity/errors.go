package identity

import "errors"

var (
	// ErrPermissionEscalation is returned when an admin attempts to
	// grant a permission it does not itself hold.
	ErrPermissionEscalation = errors.New("identity: permission escalation")
	// ErrInvalidAdminSignature is returned when a control node's
	// signature does not verify against its claimed author.
	ErrInvalidAdminSignature = errors.New("identity: invalid admin signature")
	// ErrExpiredCertificate is returned when a certificate's not_after
	// predates the node's authoring timestamp.
	ErrExpiredCertificate = errors.New("identity: expired certificate")
	// ErrUnknownIssuer is returned when a certificate's issuer cannot
	// be resolved to the master key or a known device.
	ErrUnknownIssuer = errors.New("identity: unknown issuer")
)

// CheckNoEscalation verifies that granted is a subset of issuerHolds,
// returning ErrPermissionEscalation if the issuer attempts to grant
// capabilities it does not hold.
func CheckNoEscalation(issuerHolds, granted Permission) error {
	if !issuerHolds.Has(granted) {
		return ErrPermissionEscalation
	}
	return nil
}
