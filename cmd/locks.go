package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"lototrak/internal/config"
	"lototrak/internal/inventory"
	"lototrak/internal/locks"
	"lototrak/internal/storage"
)

var actingUser string

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Manage the lock inventory",
	Long:  `Create, list, import and delete locks. Changes are written to the audit log.`,
}

// cliActor resolves the user that audit events from CLI commands are
// attributed to. Defaults to the first admin account.
func cliActor(ctx context.Context) *storage.User {
	if actingUser != "" {
		user, err := provider.GetUserByEmail(ctx, actingUser)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unknown user %q: %v\n", actingUser, err)
			os.Exit(1)
		}
		return user
	}

	users, err := provider.ListUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing users: %v\n", err)
		os.Exit(1)
	}
	for i := range users {
		if users[i].Role == storage.RoleAdmin {
			return &users[i]
		}
	}
	fmt.Fprintln(os.Stderr, "No admin account found. Run 'lototrak users create-admin' first, or pass --as.")
	os.Exit(1)
	return nil
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all locks",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager := locks.NewManager(provider)
		all, err := manager.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing locks: %v\n", err)
			os.Exit(1)
		}

		if len(all) == 0 {
			fmt.Println("No locks found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLOCATION\tSTATUS\tCODE\tASSIGNED TO")
		for _, lock := range all {
			assigned := "-"
			if lock.AssignedUserID != nil {
				assigned = *lock.AssignedUserID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", lock.ID, lock.Name, lock.Location, lock.Status, lock.AccessCode, assigned)
		}
		w.Flush()
	},
}

var (
	lockCode       string
	lockProcedures string
)

var locksCreateCmd = &cobra.Command{
	Use:   "create [name] [location]",
	Short: "Create a new lock",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager := locks.NewManager(provider)

		var procedures []string
		for _, p := range strings.Split(lockProcedures, ";") {
			if p = strings.TrimSpace(p); p != "" {
				procedures = append(procedures, p)
			}
		}

		lock, err := manager.Create(ctx, locks.CreateInput{
			Name:             args[0],
			Location:         args[1],
			Code:             lockCode,
			SafetyProcedures: procedures,
		}, cliActor(ctx))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating lock: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Lock '%s' created with access code %s.\n", lock.Name, lock.AccessCode)
	},
}

var locksDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Mark a lock as deleted",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager := locks.NewManager(provider)

		if err := manager.SoftDelete(ctx, args[0], cliActor(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting lock: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Lock %s marked as deleted.\n", args[0])
	},
}

var locksImportCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import locks from a CSV inventory file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager := locks.NewManager(provider)

		records, err := inventory.ParseFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading inventory: %v\n", err)
			os.Exit(1)
		}

		result := inventory.Import(ctx, manager, cliActor(ctx), records)
		fmt.Printf("Imported %d locks.\n", result.Created)
		for _, skipped := range result.Skipped {
			fmt.Fprintf(os.Stderr, "Line %d skipped: %v\n", skipped.Line, skipped.Err)
		}
		if len(result.Skipped) > 0 {
			os.Exit(1)
		}
	},
}

var qrOutFile string

var locksQrCmd = &cobra.Command{
	Use:   "qr [id]",
	Short: "Write a lock's access code QR image to a PNG file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager := locks.NewManager(provider)

		lock, err := manager.Resolve(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving lock: %v\n", err)
			os.Exit(1)
		}

		png, err := qrcode.Encode(lock.AccessCode, qrcode.Highest, config.QR_IMAGE_SIZE)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating QR code: %v\n", err)
			os.Exit(1)
		}

		out := qrOutFile
		if out == "" {
			out = fmt.Sprintf("%s.png", lock.AccessCode)
		}
		if err := os.WriteFile(out, png, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
			os.Exit(1)
		}

		fmt.Printf("QR code for lock '%s' written to %s.\n", lock.Name, out)
	},
}

func init() {
	rootCmd.AddCommand(locksCmd)
	locksCmd.PersistentFlags().StringVar(&actingUser, "as", "", "email of the user audit events are attributed to")
	locksCreateCmd.Flags().StringVar(&lockCode, "code", "", "access code (generated when empty)")
	locksCreateCmd.Flags().StringVar(&lockProcedures, "procedures", "", "safety procedure steps, separated by ';'")
	locksQrCmd.Flags().StringVar(&qrOutFile, "out", "", "output file (default <code>.png)")
	locksCmd.AddCommand(locksListCmd)
	locksCmd.AddCommand(locksCreateCmd)
	locksCmd.AddCommand(locksDeleteCmd)
	locksCmd.AddCommand(locksImportCmd)
	locksCmd.AddCommand(locksQrCmd)
}
