package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/pipeline"
)

var (
	runAccount    string
	runAll        bool
	runSourceURLs []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for one account or all accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if runAccount == "" && !runAll {
			return eris.New("either --account or --all is required")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if runAccount != "" {
			var sources []pipeline.Source
			for _, url := range runSourceURLs {
				sources = append(sources, pipeline.Source{URL: url, Kind: model.DocumentKindNews})
			}
			result, err := e.Pipeline.Run(ctx, runAccount, sources...)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
			zap.L().Info("run complete",
				zap.String("account", runAccount),
				zap.Int("stored", result.Ingest.Stored),
				zap.Int("processed", result.Processed),
			)
			return nil
		}

		accounts, err := e.Store.ListAccounts(ctx)
		if err != nil {
			return eris.Wrap(err, "list accounts")
		}

		limit := cfg.Pipeline.MaxConcurrent
		if limit <= 0 {
			limit = 4
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, account := range accounts {
			g.Go(func() error {
				result, err := e.Pipeline.Run(gctx, account.Slug)
				if err != nil {
					// One account's failure should not stop the rest.
					zap.L().Error("account run failed",
						zap.String("account", account.Slug),
						zap.Error(err),
					)
					return nil
				}
				zap.L().Info("account run complete",
					zap.String("account", account.Slug),
					zap.Int("processed", result.Processed),
				)
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	runCmd.Flags().StringVar(&runAccount, "account", "", "account slug to run")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every tracked account")
	runCmd.Flags().StringSliceVar(&runSourceURLs, "source", nil, "extra news URLs to crawl (single-account runs)")
	rootCmd.AddCommand(runCmd)
}
