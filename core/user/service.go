package user

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrWrongPassword  = errors.New("wrong password")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user owns them.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// QueryFilter.Roles matches users having any role starting with one of the provided roles.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, rt RegisterTeacher) (User, error)
		Approve(ctx context.Context, usr User) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		ChangeUsername(ctx context.Context, usr User, cu ChangeUsername) (User, error)
		ResetPassword(ctx context.Context, usr User, pwd string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		// SyncStudents creates a student account for every name without one.
		SyncStudents(ctx context.Context, names []string, defaultPwd string) (SyncResult, error)
	}

	service struct {
		repo        Repository
		mailSvc     core.EmailService
		appName     string
		adminEmails []string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:        repo,
		mailSvc:     mailSvc,
		appName:     conf.AppName,
		adminEmails: conf.Email.AdminEmails,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:       nu.Name,
		Username:   nu.Username,
		Email:      nu.Email,
		IsApproved: true,
		Roles:      nu.Roles,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Register(ctx context.Context, rt RegisterTeacher) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      rt.Name,
		Username:  rt.Username,
		Email:     rt.Email,
		Roles:     []string{RoleTeacher},
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(rt.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating teacher")
	}
	svc.notifyAdmins(usr)
	return usr, nil
}

func (svc *service) Approve(ctx context.Context, usr User) (User, error) {
	if usr.IsApproved {
		return usr, nil
	}
	usr.IsApproved = true
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "approving user")
	}
	svc.notifyApproved(usr)
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	wasApproved := usr.IsApproved

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.IsApproved != nil {
		usr.IsApproved = *uu.IsApproved
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	if !wasApproved && usr.IsApproved {
		svc.notifyApproved(usr)
	}
	return usr, nil
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "old_password", Error: ErrWrongPassword.Error()})
	}
	return svc.ResetPassword(ctx, usr, cp.NewPassword)
}

func (svc *service) ChangeUsername(ctx context.Context, usr User, cu ChangeUsername) (User, error) {
	if err := usr.CheckPassword(cu.Password); err != nil {
		return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "password", Error: ErrWrongPassword.Error()})
	}
	usr.Username = cu.NewUsername
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ResetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) SyncStudents(ctx context.Context, names []string, defaultPwd string) (SyncResult, error) {
	res := SyncResult{Names: []string{}}

	seen := make(map[string]struct{}, len(names))
	distinct := make([]string, 0, len(names))
	for _, name := range names {
		name = core.NormalizeName(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		distinct = append(distinct, name)
	}
	sort.Strings(distinct)

	for _, name := range distinct {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		uname := core.CleanString(name, true /* lower */)
		_, err := svc.repo.GetUser(ctx, GetFilter{Username: uname})
		if err == nil {
			res.Existing++
			continue
		}
		if errors.Cause(err) != ErrNotFound {
			return res, errors.Wrapf(err, "finding user %q", uname)
		}

		now := time.Now().UTC()
		usr := User{
			Name:       name,
			Username:   uname,
			IsApproved: true,
			Roles:      []string{RoleStudent},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		usr.SetActive(true)
		if err = usr.SetPassword(defaultPwd); err != nil {
			return res, errors.Wrap(err, "setting password")
		}
		if _, err = svc.repo.CreateUser(ctx, usr); err != nil {
			return res, errors.Wrapf(err, "creating student %q", uname)
		}
		res.Created++
		res.Names = append(res.Names, name)
	}
	return res, nil
}

func (svc *service) notifyAdmins(usr User) {
	if svc.mailSvc == nil || len(svc.adminEmails) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(svc.adminEmails))
	for _, email := range svc.adminEmails {
		to = append(to, mail.Address{Address: email})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "New teacher awaiting approval",
		TemplateName: "teacher_registered",
		TemplateData: usr,
		AppName:      svc.appName,
	})
}

func (svc *service) notifyApproved(usr User) {
	if svc.mailSvc == nil || usr.Email == "" || !usr.IsTeacher() {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your account has been approved",
		TemplateName: "teacher_approved",
		TemplateData: usr,
		AppName:      svc.appName,
	})
}
