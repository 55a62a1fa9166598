package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xlsmart/talenthub/internal/client"
	"github.com/xlsmart/talenthub/internal/models"
)

var (
	sessionsKind   string
	sessionsStatus string
	sessionsMine   bool
	sessionsLimit  int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List or inspect upload sessions",
	Long: `List upload sessions or inspect a specific session by ID.

Examples:
  talenthub sessions                       # List recent sessions
  talenthub sessions --status failed       # Only failed sessions
  talenthub sessions 3f2c...               # Show details for one session`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return showSession(args[0])
		}
		return listSessions()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow a session until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return followSession(apiClient, args[0])
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsKind, "kind", "", "filter by kind (employee_upload, role_standardization, bulk_assign, skills_assessment)")
	sessionsCmd.Flags().StringVar(&sessionsStatus, "status", "", "filter by status")
	sessionsCmd.Flags().BoolVar(&sessionsMine, "mine", false, "only sessions created by the current user")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "maximum number of sessions")
}

func listSessions() error {
	ctx, cancel := requestContext()
	defer cancel()

	f := client.SessionFilter{Kind: sessionsKind, Status: sessionsStatus, Limit: sessionsLimit}
	if sessionsMine {
		f.CreatedBy = userID
	}
	sessions, err := apiClient.ListSessions(ctx, f)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-36s %-20s %-16s %-10s %-8s %s\n", "ID", "KIND", "STATUS", "PROGRESS", "ERRORS", "CREATED")
	fmt.Println("----------------------------------------------------------------------------------------------------------")
	for _, s := range sessions {
		progress := fmt.Sprintf("%d/%d", s.Progress.Processed, s.Progress.Total)
		fmt.Printf("%-36s %-20s %-16s %-10s %-8d %s\n",
			s.ID, s.Kind, s.Status, progress, s.Progress.Errors, s.CreatedAt.Local().Format("01-02 15:04"))
	}
	return nil
}

func showSession(id string) error {
	ctx, cancel := requestContext()
	defer cancel()

	state, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	printSession(state)
	return nil
}

func printSession(state *client.SessionState) {
	s := state.Session
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("  Name: %s\n", s.Name)
	fmt.Printf("  Kind: %s\n", s.Kind)
	fmt.Printf("  Status: %s", s.Status)
	if state.Running {
		fmt.Print(" (running)")
	}
	fmt.Println()
	fmt.Printf("  Files: %v\n", s.FileNames)
	fmt.Printf("  Created by: %s\n", s.CreatedBy)
	fmt.Printf("  Created: %s\n", s.CreatedAt.Format(time.RFC3339))
	if p := s.Progress; p.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", p.CompletedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", p.CompletedAt.Sub(s.CreatedAt).Round(time.Second))
	}
	if s.ErrorMessage != nil && *s.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", *s.ErrorMessage)
	}
	fmt.Println("\nProgress:")
	fmt.Print(summary(models.ProgressReport{Status: s.Status, Progress: s.Progress}))
}
