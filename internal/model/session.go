package model

// Session is the record of the currently authenticated identity.
type Session struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity is what the authentication backend hands back on login or register.
type Identity struct {
	User  Session `json:"user"`
	Token string  `json:"token"`
}
