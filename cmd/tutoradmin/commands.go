package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

type connectFunc func(withServices bool) (*env, error)

// operator is the actor recorded for changes made from this tool.
var operator = services.Actor{UserID: "tutoradmin", Role: models.RoleAdmin}

func newMigrateCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(false)
			if err != nil {
				return err
			}
			defer e.close()

			if err := models.Migrate(e.db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(models.AllModels()))
			return nil
		},
	}
}

func newCreateAdminCmd(connect connectFunc, prompt func(string) (string, error)) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a confirmed account with the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := prompt("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()

			profile, err := createAdmin(cmd.Context(), e.repo, validator.New(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", profile.Email, profile.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address of the new admin")
	cmd.Flags().StringVar(&name, "name", "", "Full name of the new admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSetRoleCmd(connect connectFunc) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an existing profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(true)
			if err != nil {
				return err
			}
			defer e.close()

			profile, err := setRole(cmd.Context(), e.repo, e.services.Profile(), email, models.UserRole(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", profile.Email, profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address of the profile")
	cmd.Flags().StringVar(&role, "role", "", "One of admin, tutor, student, parent")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// createAdmin registers a pre-confirmed identity and gives it an admin profile.
func createAdmin(ctx context.Context, repo repositories.Repository, v *validator.Validator, email, name, password string) (*models.Profile, error) {
	req := &services.SignUpRequest{Email: strings.TrimSpace(email), Password: password, FullName: strings.TrimSpace(name)}
	if err := v.Validate(req); err != nil {
		return nil, err
	}

	result, err := repo.Auth().SignUp(ctx, repositories.SignUpParams{
		Email:     req.Email,
		Password:  req.Password,
		Metadata:  map[string]interface{}{"full_name": req.FullName},
		Confirmed: true,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, fmt.Errorf("%s is already registered; use set-role instead", req.Email)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	var profile *models.Profile
	err = repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		stored, _, err := repo.Profile().CreateIfAbsent(ctx, tx, &models.Profile{
			UserID:   result.User.ID,
			Email:    result.User.Email,
			FullName: req.FullName,
			Role:     models.RoleAdmin,
		})
		profile = stored
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin profile: %w", err)
	}
	return profile, nil
}

func setRole(ctx context.Context, repo repositories.Repository, profiles services.ProfileService, email string, role models.UserRole) (*models.Profile, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	matches, _, err := repo.Profile().List(ctx, nil, repositories.ProfileFilters{Query: email, Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", email, err)
	}
	for _, p := range matches {
		if strings.EqualFold(p.Email, email) {
			return profiles.ChangeRole(ctx, operator, p.UserID, &services.ChangeRoleRequest{Role: role})
		}
	}
	return nil, fmt.Errorf("no profile with email %s; the user must sign in once first", email)
}

// readPassword prompts on a terminal and reads one line otherwise, so the
// password can be piped in from a secret store.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(raw), err
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
