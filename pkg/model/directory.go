package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleBroker   Role = "broker"
	RoleAdmin    Role = "admin"
)

// Property is the slice of the back-office property record visits need.
type Property struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	OwnerID int64  `json:"owner_id"`
	City    string `json:"city,omitempty"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) CanHandleVisits() bool {
	return u.Role == RoleBroker || u.Role == RoleAdmin
}
