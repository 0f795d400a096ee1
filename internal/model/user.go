package model

import (
	"strings"
	"time"
)

// Roles a user can hold inside one client.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultCountry is stored when an address omits its country.
const DefaultCountry = "Colombia"

// User mirrors the 'users' table plus its addresses.  PasswordHash is
// never serialized.
type User struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Phone           string    `json:"phone,omitempty"`
	Addresses       []Address `json:"addresses"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Address mirrors the 'user_addresses' table.
type Address struct {
	ID        string `json:"_id,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	IsDefault bool   `json:"isDefault"`
}

// NormalizeEmail lowercases and trims an address so lookups and the
// unique index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrepareNew applies the transformations every user row gets before its
// first insert.  Hashing the password is left to the caller.
func (u *User) PrepareNew(now time.Time) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Addresses == nil {
		u.Addresses = []Address{}
	}
	u.CreatedAt = now
	u.UpdatedAt = now
}

// Normalize trims address fields and fills the default country.
func (a *Address) Normalize() {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = DefaultCountry
	}
}
