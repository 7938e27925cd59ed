package domain

// Tenant scopes every ledger operation to one household.
type Tenant struct {
	FamilyID string
	UserID   string
}

// Validate checks that the tenant identifies a family.
func (t Tenant) Validate() error {
	if t.FamilyID == "" {
		return ErrMissingTenant
	}
	return nil
}

// Actor returns the user recorded in audit rows.
func (t Tenant) Actor() string {
	if t.UserID == "" {
		return "system"
	}
	return t.UserID
}
