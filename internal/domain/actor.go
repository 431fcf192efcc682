package domain

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleLogistics Role = "LOGISTICS"
	RoleClient    Role = "CLIENT"
	RoleSystem    Role = "SYSTEM"
)

// Actor is the acting user as resolved by the auth layer.
type Actor struct {
	ID         string `json:"id"`
	PlatformID string `json:"platform_id"`
	Role       Role   `json:"role"`
	CompanyID  string `json:"company_id,omitempty"`
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleLogistics
}
