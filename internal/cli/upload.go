package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xlsmart/talenthub/internal/client"
	"github.com/xlsmart/talenthub/internal/ingest"
)

var (
	uploadName       string
	uploadAutoAssign bool
	uploadNoWait     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload an employee or role spreadsheet",
}

var uploadEmployeesCmd = &cobra.Command{
	Use:   "employees <file.xlsx|file.csv>",
	Short: "Upload employees and start role assignment",
	Long: `Upload an employee spreadsheet. Every valid row is stored under a new
session and matched against the standard role catalog in the background.

Examples:
  talenthub upload employees smartfren.xlsx
  talenthub upload employees xl.csv --name "XL wave 1" --auto-assign`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		res, err := apiClient.UploadEmployees(ctx, args[0], uploadName, uploadAutoAssign)
		if err != nil {
			return uploadError(err)
		}
		return afterUpload(res, "employees")
	},
}

var uploadRolesCmd = &cobra.Command{
	Use:   "roles <file.xlsx|file.csv>",
	Short: "Upload source-company roles and start standardization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		res, err := apiClient.UploadRoles(ctx, args[0], uploadName)
		if err != nil {
			return uploadError(err)
		}
		return afterUpload(res, "roles")
	},
}

func init() {
	uploadCmd.PersistentFlags().StringVarP(&uploadName, "name", "n", "", "session name (default: file name)")
	uploadCmd.PersistentFlags().BoolVar(&uploadNoWait, "no-wait", false, "return after the upload is accepted")
	uploadEmployeesCmd.Flags().BoolVar(&uploadAutoAssign, "auto-assign", false, "assign matched roles instead of only suggesting them")

	uploadCmd.AddCommand(uploadEmployeesCmd)
	uploadCmd.AddCommand(uploadRolesCmd)
}

func afterUpload(res *client.UploadResult, what string) error {
	fmt.Printf("Session %s: %d %s accepted\n", res.SessionID, res.Accepted, what)
	printRowErrors(res.RowErrors)
	if uploadNoWait {
		fmt.Printf("Use 'talenthub watch %s' to follow progress.\n", res.SessionID)
		return nil
	}
	return followSession(apiClient, res.SessionID)
}

// uploadError prints rejected rows before returning the error.
func uploadError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		printRowErrors(apiErr.RowErrors)
	}
	return fmt.Errorf("upload: %w", err)
}

func printRowErrors(rows []ingest.RowError) {
	if len(rows) == 0 {
		return
	}
	fmt.Printf("Skipped rows (%d):\n", len(rows))
	for _, r := range rows {
		fmt.Printf("  - %s\n", r)
	}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
