package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/user"
	"github.com/spf13/cobra"
)

var (
	credUsername string
	credPassword string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an employee account and log in as it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *Dependencies) error {
			identity, err := deps.Auth.Signup(ctx, auth.SignupDTO{Username: credUsername, Password: credPassword})
			if err != nil {
				return err
			}
			fmt.Printf("Signed up and logged in as %s (%s)\n", identity.Username, identity.Role)
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and keep the session in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *Dependencies) error {
			identity, err := deps.Auth.Login(ctx, auth.LoginDTO{Username: credUsername, Password: credPassword})
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", identity.Username, identity.Role)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *Dependencies) error {
			if err := deps.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *Dependencies) error {
			identity, err := deps.Auth.CurrentSession(ctx)
			if err != nil {
				return err
			}
			if identity == nil {
				fmt.Println("Not logged in")
				return nil
			}
			fmt.Printf("%s (%s) id=%s\n", identity.Username, identity.Role, identity.ID)
			return nil
		})
	},
}

// withDeps runs fn with CLI dependencies: session-backed auth, logs on stderr.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *Dependencies) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := initializeDependencies(depsOptions{sessions: true, forward: true, logOut: os.Stderr})
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, deps)
}

// withSession is withDeps for commands that act as the logged in user on a
// hydrated expense store.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, deps *Dependencies, actor user.Identity) error) error {
	return withDeps(cmd, func(ctx context.Context, deps *Dependencies) error {
		actor, err := deps.Auth.RequireSession(ctx)
		if err != nil {
			return err
		}
		if err := deps.HydrateExpenses(ctx); err != nil {
			return err
		}
		return fn(ctx, deps, actor)
	})
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVarP(&credUsername, "username", "u", "", "username")
		c.Flags().StringVarP(&credPassword, "password", "p", "", "password")
		_ = c.MarkFlagRequired("username")
		_ = c.MarkFlagRequired("password")
	}

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}
