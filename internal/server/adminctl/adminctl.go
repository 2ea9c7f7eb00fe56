// Package adminctl implements the operator commands behind cmd/authctl.
package adminctl

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/prompt"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

const usage = `usage:
  authctl create-admin -email <email> [-name <name>]
  authctl set-role -email <email> -role user|admin`

type Runner struct {
	users  *services.UserService
	reader *bufio.Reader
	out    io.Writer

	// getPassword is swapped in tests.
	getPassword func(io.Writer) ([]byte, error)
}

func NewRunner(users *services.UserService, in io.Reader, out io.Writer) *Runner {
	return &Runner{users: users, reader: bufio.NewReader(in), out: out, getPassword: prompt.GetPassword}
}

// Run executes the command in args. Server configuration flags may precede
// it and are skipped.
func (r *Runner) Run(ctx context.Context, args []string) error {
	for i, arg := range args {
		switch arg {
		case "create-admin":
			return r.createAdmin(ctx, args[i+1:])
		case "set-role":
			return r.setRole(ctx, args[i+1:])
		}
	}
	fmt.Fprintln(r.out, usage)
	return fmt.Errorf("no command given")
}

func (r *Runner) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "Administrator", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		v, err := prompt.GetSimpleText(r.reader, "Enter email", r.out)
		if err != nil {
			return err
		}
		*email = v
	}

	password, err := r.getPassword(r.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := r.users.CreateAdmin(ctx, services.RegisterInput{Name: *name, Email: *email, Password: string(password)})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "created admin %s (%s)\n", u.Email, u.ID)
	return nil
}

func (r *Runner) setRole(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account email")
	role := fs.String("role", "", "user or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *role == "" {
		fmt.Fprintln(r.out, usage)
		return fmt.Errorf("%w: email and role are required", common.ErrValidation)
	}

	u, err := r.users.SetRoleByEmail(ctx, *email, models.Role(*role))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s is now %s\n", u.Email, u.Role)
	return nil
}
