package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xlsmart/talenthub/internal/models"
)

var (
	assignSession    string
	assignAutoAssign bool
	assignNoWait     bool

	employeesSession string
	employeesStatus  string
	employeesLimit   int
)

var assignCmd = &cobra.Command{
	Use:   "assign [employee-id...]",
	Short: "Run AI role assignment for employees",
	Long: `Start a bulk role assignment, either for the listed employees or for the
employees of an upload session that are still pending or found no match.

Examples:
  talenthub assign --session 3f2c... --auto-assign
  talenthub assign 8a1e... 93bd...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (assignSession == "") == (len(args) == 0) {
			return fmt.Errorf("give either --session or employee ids")
		}
		ctx, cancel := requestContext()
		defer cancel()

		var (
			sess *models.UploadSession
			err  error
		)
		if assignSession != "" {
			sess, err = apiClient.AssignSessionRoles(ctx, assignSession, assignAutoAssign)
		} else {
			sess, err = apiClient.BulkAssign(ctx, args, assignAutoAssign)
		}
		if err != nil {
			return fmt.Errorf("assign roles: %w", err)
		}
		return afterStart(sess)
	},
}

var assessCmd = &cobra.Command{
	Use:   "assess <employee-id...>",
	Short: "Run an AI skills assessment for employees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		sess, err := apiClient.AssessSkills(ctx, args)
		if err != nil {
			return fmt.Errorf("assess skills: %w", err)
		}
		return afterStart(sess)
	},
}

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "List uploaded employees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		employees, err := apiClient.ListEmployees(ctx, employeesSession, employeesStatus, employeesLimit)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		if len(employees) == 0 {
			fmt.Println("No employees found")
			return nil
		}

		fmt.Printf("%-36s %-24s %-28s %-14s %s\n", "ID", "NAME", "POSITION", "STATUS", "ROLE")
		fmt.Println("------------------------------------------------------------------------------------------------------------------------")
		for _, e := range employees {
			role := ""
			if id, ok := e.RoleForAssessment(); ok {
				role = id
			}
			fmt.Printf("%-36s %-24s %-28s %-14s %s\n",
				e.ID, clip(e.Name, 24), clip(e.Position, 28), e.RoleAssignmentStatus, role)
		}
		return nil
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <employee-id> <role-id>",
	Short: "Assign a standard role to an employee by hand",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		e, err := apiClient.AssignRole(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
		fmt.Printf("✓ %s is now %s\n", e.Name, *e.StandardRoleID)
		return nil
	},
}

func init() {
	assignCmd.Flags().StringVarP(&assignSession, "session", "s", "", "re-run assignment for an upload session")
	assignCmd.Flags().BoolVar(&assignAutoAssign, "auto-assign", false, "assign matched roles instead of only suggesting them")
	assignCmd.Flags().BoolVar(&assignNoWait, "no-wait", false, "return once the run is started")
	assessCmd.Flags().BoolVar(&assignNoWait, "no-wait", false, "return once the run is started")

	employeesCmd.Flags().StringVarP(&employeesSession, "session", "s", "", "filter by upload session")
	employeesCmd.Flags().StringVar(&employeesStatus, "status", "", "filter by assignment status (pending, ai_suggested, assigned, ai_no_match)")
	employeesCmd.Flags().IntVarP(&employeesLimit, "limit", "l", 50, "maximum number of employees")
	employeesCmd.AddCommand(setRoleCmd)
}

func afterStart(sess *models.UploadSession) error {
	fmt.Printf("Session %s started (%d employees)\n", sess.ID, sess.TotalRows)
	if assignNoWait {
		return nil
	}
	return followSession(apiClient, sess.ID)
}

// clip shortens s to n runes for table output.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
