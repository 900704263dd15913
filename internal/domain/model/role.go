package model

import (
	"time"

	"github.com/gosimple/slug"
)

const (
	RoleAdmin     = "Admin"
	RoleProfessor = "Professor"
	RoleStudent   = "Student"

	// DefaultRoleName is assigned to every newly registered user.
	DefaultRoleName = RoleStudent
)

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func NewRole(id int64, name, description string) Role {
	return Role{ID: id, Name: name, Slug: slug.Make(name), Description: description}
}

// DefaultRoles is the fixed role seed. IDs are stable across deployments.
func DefaultRoles() []Role {
	return []Role{
		NewRole(1, RoleAdmin, "Full access to user and role management"),
		NewRole(2, RoleProfessor, "Manages subjects, groups and tasks"),
		NewRole(3, RoleStudent, "Default role for registered users"),
	}
}

// UserRoleAssignment is the edge between a user and a role.
type UserRoleAssignment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	RoleID     int64     `json:"roleId"`
	AssignedAt time.Time `json:"assignedAt"`
}
