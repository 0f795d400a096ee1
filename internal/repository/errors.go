// Package repository holds the MySQL data access for one client database.
// Repositories are cheap structs around a *sql.DB; handlers build them per
// request from the resolved client's connection.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers
// translate it into the resource-specific 404 (or 401 for users).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert hits the unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidTransition is returned when an order status change is not
// allowed by the order lifecycle.
var ErrInvalidTransition = errors.New("invalid order status transition")
