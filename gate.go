package auth

// ApprovalGate decides whether a basic identity may proceed
type ApprovalGate func(identity *Identity) bool

// IsAdmitted is the default gate: superadmins and approved actors pass.
func IsAdmitted(identity *Identity) bool {
	if identity == nil {
		return false
	}
	return identity.Superadmin || identity.Approved
}
