package model

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

func (u *User) Session() Session {
	return Session{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}
