package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/account-intel/internal/model"
)

var (
	accountSlug     string
	accountName     string
	accountWebsite  string
	accountLocation string
	accountSeedFile string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage tracked accounts",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		account, err := st.CreateAccount(ctx, model.Account{
			Slug:     accountSlug,
			Name:     accountName,
			Website:  accountWebsite,
			Location: accountLocation,
		})
		if err != nil {
			return eris.Wrap(err, "create account")
		}

		zap.L().Info("account created",
			zap.String("id", account.ID),
			zap.String("slug", account.Slug),
		)
		return nil
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		accounts, err := st.ListAccounts(ctx)
		if err != nil {
			return eris.Wrap(err, "list accounts")
		}

		for _, a := range accounts {
			fmt.Printf("%-24s %-32s %s\n", a.Slug, a.Name, a.Website)
		}
		fmt.Printf("%d account(s)\n", len(accounts))
		return nil
	},
}

// accountSeed is one entry in a YAML seed file.
type accountSeed struct {
	Slug     string `yaml:"slug"`
	Name     string `yaml:"name"`
	Website  string `yaml:"website"`
	Location string `yaml:"location"`
}

var accountsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import accounts from a YAML seed file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(accountSeedFile)
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}

		var seeds []accountSeed
		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return eris.Wrap(err, "parse seed file")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		created := 0
		for _, seed := range seeds {
			if seed.Slug == "" || seed.Name == "" {
				zap.L().Warn("skipping seed entry without slug or name")
				continue
			}
			if _, err := st.GetAccountBySlug(ctx, seed.Slug); err == nil {
				zap.L().Debug("account already exists", zap.String("slug", seed.Slug))
				continue
			}
			if _, err := st.CreateAccount(ctx, model.Account{
				Slug:     seed.Slug,
				Name:     seed.Name,
				Website:  seed.Website,
				Location: seed.Location,
			}); err != nil {
				return eris.Wrapf(err, "create account %s", seed.Slug)
			}
			created++
		}

		zap.L().Info("import complete",
			zap.Int("created", created),
			zap.Int("total", len(seeds)),
			zap.String("file", accountSeedFile),
		)
		return nil
	},
}

func init() {
	accountsAddCmd.Flags().StringVar(&accountSlug, "slug", "", "unique account slug (required)")
	accountsAddCmd.Flags().StringVar(&accountName, "name", "", "display name (required)")
	accountsAddCmd.Flags().StringVar(&accountWebsite, "website", "", "primary website URL")
	accountsAddCmd.Flags().StringVar(&accountLocation, "location", "", "location")
	_ = accountsAddCmd.MarkFlagRequired("slug")
	_ = accountsAddCmd.MarkFlagRequired("name")

	accountsImportCmd.Flags().StringVar(&accountSeedFile, "file", "", "path to YAML seed file (required)")
	_ = accountsImportCmd.MarkFlagRequired("file")

	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsImportCmd)
	rootCmd.AddCommand(accountsCmd)
}
