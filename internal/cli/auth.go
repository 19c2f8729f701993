package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/validation"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up and inspect the stored session",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return &usageError{}
		},
	}
	cmd.AddCommand(a.loginCmd(), a.registerCmd(), a.logoutCmd(), a.statusCmd(), a.whoamiCmd())
	return cmd
}

// prompter asks for missing values on the input stream, one line each.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (a *app) prompter() *prompter {
	return &prompter{in: bufio.NewReader(a.streams.In), out: a.streams.Out}
}

func (p *prompter) fill(label string, v *string) error {
	if *v != "" {
		return nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	*v = strings.TrimSpace(line)
	return nil
}

func (a *app) loginCmd() *cobra.Command {
	var form validation.LoginForm
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your email and password",
		Long: `Sign in with your email and password. Missing values are read from stdin.
With --token an existing token is stored as is; the user id is read from it.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token != "" {
				return a.saveToken(token)
			}
			p := a.prompter()
			if err := p.fill("Email", &form.Identifier); err != nil {
				return err
			}
			if err := p.fill("Password", &form.Password); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			sess, err := c.Login(cmd.Context(), form.Identifier, form.Password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := a.store.Save(*sess); err != nil {
				return err
			}
			ui.OK(a.streams.Out, "logged in as "+displayName(sess.User))
			return nil
		},
	}
	cmd.Flags().StringVarP(&form.Identifier, "identifier", "i", "", "email address")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&token, "token", "", "store this token instead of signing in")
	return cmd
}

func (a *app) saveToken(token string) error {
	c, err := session.ParseClaims(token)
	if err != nil {
		return usagef("token: %v", err)
	}
	if c.UserID == 0 {
		return usagef("token carries no user id")
	}
	if err := a.store.Save(model.Session{JWT: token, User: model.User{ID: c.UserID}}); err != nil {
		return err
	}
	ui.OK(a.streams.Out, "token saved")
	return nil
}

func (a *app) registerCmd() *cobra.Command {
	var form validation.RegisterForm
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.prompter()
			if err := p.fill("Username", &form.Username); err != nil {
				return err
			}
			if err := p.fill("Email", &form.Email); err != nil {
				return err
			}
			if err := p.fill("Password", &form.Password); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			sess, err := c.Register(cmd.Context(), form.Username, form.Email, form.Password)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := a.store.Save(*sess); err != nil {
				return err
			}
			ui.OK(a.streams.Out, "registered "+displayName(sess.User))
			return nil
		},
	}
	cmd.Flags().StringVarP(&form.Username, "username", "u", "", "username (at least 5 characters)")
	cmd.Flags().StringVarP(&form.Email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "password (at least 6 characters)")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.store.Load()
			if err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			if rec != nil && rec.Source == session.SourceEnv {
				ui.OK(a.streams.Out, "session is provided by "+session.EnvToken+" env var (nothing to delete)")
				return nil
			}
			if err := a.store.Delete(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			ui.OK(a.streams.Out, "logged out")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the session comes from and when it expires",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := a.streams.Out
			rec, err := a.store.Load()
			if err != nil {
				return err
			}
			if rec == nil {
				ui.Muted(w, "not logged in")
				fmt.Fprintln(w, "Run: tada auth login")
				return nil
			}
			fmt.Fprintf(w, "source: %s\n", rec.Source)
			if rec.Source == session.SourceFile {
				fmt.Fprintf(w, "file: %s\n", a.store.Path())
			}
			fmt.Fprintf(w, "user: %d\n", rec.User.ID)
			if c, err := session.ParseClaims(rec.JWT); err == nil && c.ExpiresAt != nil {
				fmt.Fprintf(w, "expires: %s\n", c.ExpiresAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(w, "expires: (unknown)")
			}
			fmt.Fprintln(w, "env override: "+session.EnvToken)
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.requireSession()
			if err != nil {
				return err
			}
			w := a.streams.Out
			if offline {
				c, err := session.ParseClaims(rec.JWT)
				if err != nil {
					fmt.Fprintln(w, "Opaque token (cannot introspect locally).")
					fmt.Fprintln(w, "source:", rec.Source)
					return nil
				}
				fmt.Fprintf(w, "user: %d\n", c.UserID)
				if c.IssuedAt != nil {
					fmt.Fprintf(w, "issued: %s\n", c.IssuedAt.UTC().Format(time.RFC3339))
				}
				if c.ExpiresAt != nil {
					fmt.Fprintf(w, "expires: %s\n", c.ExpiresAt.UTC().Format(time.RFC3339))
				}
				return nil
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			me, err := c.WithToken(rec.JWT).Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("whoami: %w", err)
			}
			fmt.Fprintln(w, displayName(me.User))
			fmt.Fprintf(w, "todos: %d\n", len(me.Todos))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "decode the token locally instead of asking the API")
	return cmd
}

func displayName(u model.User) string {
	switch {
	case u.Username != "" && u.Email != "":
		return fmt.Sprintf("%s <%s>", u.Username, u.Email)
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	}
	return fmt.Sprintf("user %d", u.ID)
}
