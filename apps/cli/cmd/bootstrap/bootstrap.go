package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

// Notes/constraints:
// - Bootstrap applies the core DDL before any seed step, so it is safe to run
//   against an empty database.
// - Seeding is idempotent on the president's external id: rerunning against a
//   seeded database reports the existing records instead of duplicating them.

// Command groups bootstrap helpers (schema init, tenant seed).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (schema, first company, president user)",
		Long:  "Bootstrap platform resources such as the core database schema and the initial company with its president account.",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL        string
		companyName        string
		companyRegion      string
		companyArea        string
		presidentExternal  string
		presidentEmail     string
		presidentFirstName string
		presidentLastName  string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Apply the core schema and seed the first company and president",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if strings.TrimSpace(companyName) == "" {
				return errors.New("company-name is required")
			}
			if strings.TrimSpace(presidentExternal) == "" {
				return errors.New("president-external-id is required")
			}
			if strings.TrimSpace(presidentEmail) == "" {
				return errors.New("president-email is required")
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.ApplyCoreSchemaDDL(ctx, pool); err != nil {
				return fmt.Errorf("apply core schema: %w", err)
			}

			userStore, err := persistence.NewUserStore(pool)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}
			companyStore, err := persistence.NewCompanyStore(pool)
			if err != nil {
				return fmt.Errorf("init company store: %w", err)
			}

			existing, err := userStore.GetUserByExternalID(ctx, presidentExternal)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "already bootstrapped: company=%d president=%s\n", existing.CompanyID, existing.UserID)
				return nil
			}
			if !errors.Is(err, persistence.ErrUserNotFound) {
				return fmt.Errorf("check president: %w", err)
			}

			company, err := companyStore.CreateCompany(ctx, companyName, companyRegion, companyArea)
			if err != nil {
				return fmt.Errorf("create company: %w", err)
			}

			president, err := userStore.CreateUser(ctx, persistence.CreateUserParams{
				UserID:     uuid.New(),
				ExternalID: presidentExternal,
				CompanyID:  company.CompanyID,
				Role:       rbac.RolePresident.String(),
				FirstName:  presidentFirstName,
				LastName:   presidentLastName,
				Email:      strings.ToLower(presidentEmail),
				Status:     "active",
				Region:     companyRegion,
				Area:       companyArea,
			})
			if err != nil {
				return fmt.Errorf("create president: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "bootstrapped: company=%d president=%s\n", company.CompanyID, president.UserID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "postgres connection string")
	c.Flags().StringVar(&companyName, "company-name", "", "name of the first company")
	c.Flags().StringVar(&companyRegion, "company-region", "", "company region")
	c.Flags().StringVar(&companyArea, "company-area", "", "company area")
	c.Flags().StringVar(&presidentExternal, "president-external-id", "", "identity-provider subject id of the president")
	c.Flags().StringVar(&presidentEmail, "president-email", "", "president email")
	c.Flags().StringVar(&presidentFirstName, "president-first-name", "", "president first name")
	c.Flags().StringVar(&presidentLastName, "president-last-name", "", "president last name")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("company-name")
	_ = c.MarkFlagRequired("president-external-id")
	_ = c.MarkFlagRequired("president-email")

	return c
}
