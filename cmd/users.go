package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"lototrak/internal/storage"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long:  `List users, change roles and bootstrap the first admin account.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users with their roles",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		users, err := provider.ListUsers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCREATED AT")
		for _, user := range users {
			name := "-"
			if user.Name != nil {
				name = *user.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", user.ID, user.Email, name, user.Role, user.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
		fmt.Printf("\nTotal users: %d\n", len(users))
	},
}

var usersSetRoleCmd = &cobra.Command{
	Use:   "set-role [email] [role]",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		role := storage.Role(args[1])
		if !storage.ValidRole(role) {
			fmt.Fprintf(os.Stderr, "Invalid role %q. Valid roles: ADMIN, SUPERVISOR, USER, PENDING\n", args[1])
			os.Exit(1)
		}

		user, err := provider.GetUserByEmail(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unknown user %q: %v\n", args[0], err)
			os.Exit(1)
		}

		if err := provider.UpdateUserRole(ctx, user.ID, role); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating role: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("User %s is now %s.\n", user.Email, role)
	},
}

var adminName string

var usersCreateAdminCmd = &cobra.Command{
	Use:   "create-admin [email] [password]",
	Short: "Create the initial admin account",
	Long:  `Creates an admin account. Refuses to run once an admin exists; use set-role to promote further admins.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		count, err := provider.CountUsersByRole(ctx, storage.RoleAdmin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking for existing admins: %v\n", err)
			os.Exit(1)
		}
		if count > 0 {
			fmt.Fprintln(os.Stderr, "An admin account already exists. Use 'users set-role' to promote another user.")
			os.Exit(1)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(args[1]), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
			os.Exit(1)
		}

		user := storage.User{
			ID:           uuid.NewString(),
			Email:        args[0],
			PasswordHash: string(hash),
			Role:         storage.RoleAdmin,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if adminName != "" {
			user.Name = &adminName
		}

		if err := provider.CreateUser(ctx, user); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating admin: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Admin account %s created.\n", user.Email)
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCreateAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersSetRoleCmd)
	usersCmd.AddCommand(usersCreateAdminCmd)
}
