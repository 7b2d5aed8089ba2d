package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/insights/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

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

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	IsApproved   bool      `json:"is_approved"` // false for self-registered teachers until an admin approves them
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
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

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// IsPending reports whether the user is a teacher awaiting approval.
func (u *User) IsPending() bool {
	return !u.IsApproved && u.IsTeacher() && !u.IsAdmin()
}

// CanReadAll reports whether the user may read every record of the corpus.
func (u *User) CanReadAll() bool {
	return u.IsAdmin() || u.IsTeacher()
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=2,max=50,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.NormalizeName(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// RegisterTeacher is the self-registration payload of a teacher account.
type RegisterTeacher struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"required,min=2,max=50,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rt *RegisterTeacher) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	rt.Name = core.NormalizeName(rt.Name)
	rt.Username = core.CleanString(rt.Username, true /* lower */)
	rt.Email = core.CleanString(rt.Email, true /* lower */)

	if err := validate.Struct(rt); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, rt.Username, rt.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=2,max=50,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	IsApproved      *bool    `json:"is_approved"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.NormalizeName(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ChangePassword struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`

	user User // for the similarity check
}

func (cp *ChangePassword) Validate(validate *validator.Validate, usr User) error {
	cp.user = usr
	return validate.Struct(cp)
}

type ChangeUsername struct {
	NewUsername string `json:"new_username" validate:"required,min=2,max=50,alphanum_"`
	Password    string `json:"password" validate:"required"`
}

func (cu *ChangeUsername) Validate(ctx context.Context, validate *validator.Validate, usr User, svc Service) error {
	cu.NewUsername = core.CleanString(cu.NewUsername, true /* lower */)
	if err := validate.Struct(cu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, cu.NewUsername, "", usr)
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	IsApproved  *bool     `query:"is_approved"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.IsApproved == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderableFields lists the fields users can be sorted by.
var OrderableFields = map[string]bool{
	"name": true, "username": true, "email": true, "is_active": true, "is_approved": true,
	"created_at": true, "updated_at": true, "last_login": true,
}

// CleanOrdering drops unknown and repeated fields, newest first when nothing is left.
func CleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	res := make([]core.DBOrdering, 0, len(ordering))
	seen := make(map[string]bool, len(ordering))
	for _, ord := range ordering {
		if !OrderableFields[ord.Field] || seen[ord.Field] {
			continue
		}
		seen[ord.Field] = true
		res = append(res, ord)
	}
	if len(res) == 0 {
		res = append(res, core.DBOrdering{Field: "created_at"})
	}
	return res
}

// SyncResult reports what a student accounts sync did.
type SyncResult struct {
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Names    []string `json:"names"` // created accounts
}
