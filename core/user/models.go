package user

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/darasahq/darasa/core"
)

// Roles
const (
	RoleSystemAdmin = "SYSTEM_ADMIN"
	RoleAdmin       = "ADMIN"
	RoleTeacher     = "TEACHER"
	RoleStudent     = "STUDENT"
)

var (
	AllRoles = []string{RoleSystemAdmin, RoleAdmin, RoleTeacher, RoleStudent}

	// AdminRoles excludes STUDENT, which cannot be combined with other roles.
	AdminRoles = []string{RoleSystemAdmin, RoleAdmin}

	rolePriorities = map[string]int{
		RoleSystemAdmin: 40,
		RoleAdmin:       30,
		RoleTeacher:     20,
		RoleStudent:     10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "System Admin", Value: RoleSystemAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// NormalizeRoles upper-cases, deduplicates and sorts the provided roles,
// dropping anything that is not a known role value.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(core.CleanString(role))
		if _, known := rolePriorities[role]; !known || seen[role] {
			continue
		}
		seen[role] = true
		normalized = append(normalized, role)
	}
	sort.Strings(normalized)
	return normalized
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	FirstName         string    `json:"first_name,omitempty"`
	LastName          string    `json:"last_name,omitempty"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	IsActive          *bool     `json:"is_active"`
	Roles             []string  `json:"roles"`
	PasswordHash      []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) { u.IsActive = &active }

func (u *User) Active() bool { return u.IsActive != nil && *u.IsActive }

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user may access the admin API.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleSystemAdmin) || u.HasRole(RoleAdmin)
}

func (u *User) IsSystemAdmin() bool { return u.HasRole(RoleSystemAdmin) }
func (u *User) IsTeacher() bool     { return u.HasRole(RoleTeacher) }
func (u *User) IsStudent() bool     { return u.HasRole(RoleStudent) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email             string   `json:"email" validate:"required,email"`
	Name              string   `json:"name" validate:"required"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	PreferredLanguage string   `json:"preferred_language"`
	Password          string   `json:"password" validate:"omitempty"`
	Roles             []string `json:"roles" validate:"required,min=1,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.CleanString(nu.Name)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.PreferredLanguage = core.CleanString(nu.PreferredLanguage, true /* lower */)
	nu.Roles = NormalizeRoles(nu.Roles)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Email             string   `json:"email" validate:"omitempty,email"`
	Name              string   `json:"name"`
	FirstName         *string  `json:"first_name"`
	LastName          *string  `json:"last_name"`
	PreferredLanguage *string  `json:"preferred_language"`
	IsActive          *bool    `json:"is_active"`
	Roles             []string `json:"roles" validate:"omitempty,allroles"`
	Password          string   `json:"password" validate:"omitempty"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uu.Roles != nil {
		uu.Roles = NormalizeRoles(uu.Roles)
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// GetFilter fetches a single User by the first non-empty field.
type GetFilter struct {
	ID    string
	Email string
}

// QueryFilter applies an AND operation on its non-empty fields.
// Search does a case-insensitive match on one of User.Name or User.Email.
type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = NormalizeRoles(qf.Roles)
	if len(qf.Roles) == 0 {
		qf.Roles = nil
	}
}
