package model

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
	Language  string `json:"language,omitempty"`
	LastLogin string `json:"last_login,omitempty"`
}

// Merge applies a shallow last-write-wins update of the named profile fields.
// Unknown field names are ignored.
func (u *User) Merge(fields map[string]string) {
	for name, value := range fields {
		switch name {
		case "username":
			u.Username = value
		case "email":
			u.Email = value
		case "first_name":
			u.FirstName = value
		case "last_name":
			u.LastName = value
		case "role_name":
			u.RoleName = value
		case "language":
			u.Language = value
		}
	}
}

func (u User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}

	return u.FirstName + " " + u.LastName
}
