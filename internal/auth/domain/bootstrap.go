package domain

// BootstrapData describes the first admin created on an empty user table.
type BootstrapData struct {
	AdminEmail    string
	AdminPassword string
}
