package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email string
	var roles []string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the roles and password of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd, name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %q saved (id %s)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's display name (defaults to the username)")
	cmd.Flags().StringVar(&uname, "username", "", "the user's username")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringSliceVar(&roles, "role", []string{user.RoleAdmin}, "the user's roles")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// addUser updates or creates an approved and active user.User
func (cli *commandLine) addUser(cmd *cobra.Command, name, uname, email, pwd string, roles []string) (user.User, error) {
	ctx := cmd.Context()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.NormalizeName(name); name == "" {
		name = uname
	}
	for _, role := range roles {
		if user.RolePriority(role) == 0 {
			return user.User{}, errors.Errorf("unknown role %q", role)
		}
	}

	usr, err := cli.usrSvc.GetByUsername(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		if err = cli.usrSvc.CheckUniqueness(ctx, uname, email); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, user.NewUser{Name: name, Username: uname, Email: email, Password: pwd, Roles: roles})
	}

	active, approved := true, true
	if email == "" {
		email = usr.Email
	}
	return cli.usrSvc.Update(ctx, usr, user.UpdateUser{
		Name:       name,
		Username:   uname,
		Email:      email,
		IsActive:   &active,
		IsApproved: &approved,
		Roles:      roles,
		Password:   pwd,
	})
}
