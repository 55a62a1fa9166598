package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var mappingsSession string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage the standard role catalog",
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List standard roles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		roles, err := apiClient.ListRoles(ctx)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		if len(roles) == 0 {
			fmt.Println("No standard roles. Seed a catalog with 'talenthub roles seed <catalog.yaml>'.")
			return nil
		}
		fmt.Printf("%-36s %-32s %-10s %s\n", "ID", "TITLE", "LEVEL", "SKILLS")
		fmt.Println("------------------------------------------------------------------------------------------------")
		for _, r := range roles {
			fmt.Printf("%-36s %-32s %-10s %s\n", r.ID, clip(r.Title, 32), r.Level, strings.Join(r.RequiredSkills, ", "))
		}
		return nil
	},
}

var rolesSeedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "Add roles from a YAML catalog",
	Long: `Add standard roles from a YAML catalog. Roles whose title and level
already exist are skipped.

  roles:
    - title: Network Engineer
      level: Senior
      required_skills: [IP/MPLS, BGP]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		ctx, cancel := requestContext()
		defer cancel()

		res, err := apiClient.SeedRoles(ctx, f)
		if err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
		fmt.Printf("✓ Added %d roles, skipped %d existing\n", res.Added, res.Skipped)
		return nil
	},
}

var rolesMappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List source-role mappings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		mappings, err := apiClient.ListMappings(ctx, mappingsSession)
		if err != nil {
			return fmt.Errorf("list mappings: %w", err)
		}
		if len(mappings) == 0 {
			fmt.Println("No mappings found")
			return nil
		}
		fmt.Printf("%-32s %-14s %-10s %-6s %s\n", "SOURCE TITLE", "COMPANY", "STATUS", "CONF", "STANDARD ROLE")
		fmt.Println("------------------------------------------------------------------------------------------------")
		for _, m := range mappings {
			role := "-"
			if m.StandardRoleID != nil {
				role = *m.StandardRoleID
			}
			fmt.Printf("%-32s %-14s %-10s %-6.2f %s\n", clip(m.OriginalTitle, 32), clip(m.SourceCompany, 14), m.Status, m.Confidence, role)
		}
		return nil
	},
}

var rolesDescribeCmd = &cobra.Command{
	Use:   "describe <role-id>",
	Short: "Generate a draft job description for a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		jd, err := apiClient.GenerateJobDescription(ctx, args[0])
		if err != nil {
			return fmt.Errorf("generate job description: %w", err)
		}

		fmt.Printf("%s (%s)\n\n%s\n", jd.Title, jd.Status, jd.Summary)
		printList("Responsibilities", jd.Responsibilities)
		printList("Qualifications", jd.Qualifications)
		return nil
	},
}

var rolesDescriptionsCmd = &cobra.Command{
	Use:   "descriptions <role-id>",
	Short: "List stored job descriptions for a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()

		jds, err := apiClient.ListJobDescriptions(ctx, args[0])
		if err != nil {
			return fmt.Errorf("list job descriptions: %w", err)
		}
		if len(jds) == 0 {
			fmt.Println("No job descriptions found")
			return nil
		}
		for _, jd := range jds {
			fmt.Printf("%s  %-8s %s  %s\n", jd.ID, jd.Status, jd.CreatedAt.Local().Format("2006-01-02"), jd.Title)
		}
		return nil
	},
}

func init() {
	rolesMappingsCmd.Flags().StringVarP(&mappingsSession, "session", "s", "", "filter by standardization session")

	rolesCmd.AddCommand(rolesListCmd)
	rolesCmd.AddCommand(rolesSeedCmd)
	rolesCmd.AddCommand(rolesMappingsCmd)
	rolesCmd.AddCommand(rolesDescribeCmd)
	rolesCmd.AddCommand(rolesDescriptionsCmd)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, it := range items {
		fmt.Printf("  • %s\n", it)
	}
}
