package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ramsey-B/briar/pkg/jobs"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolver"
	"github.com/Ramsey-B/briar/pkg/utils"
	"github.com/spf13/cobra"
)

type jobFlags struct {
	entityType string
	token      string
	pageSize   int
	maxPages   int
	dryRun     bool
	resume     bool
	filter     string
}

func (f *jobFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entityType, "entity-type", "t", "", "Entity type to page through (required)")
	cmd.Flags().StringVar(&f.token, "token", "", "Continuation token to start from")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Documents per page (default RESOLVE_PAGE_SIZE)")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "Stop after this many pages (0 runs to the end)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Continue from the saved checkpoint")
	_ = cmd.MarkFlagRequired("entity-type")
}

func (f *jobFlags) request() models.BulkRequest {
	return models.BulkRequest{
		EntityType:        f.entityType,
		ContinuationToken: f.token,
		PageSize:          f.pageSize,
		MaxPages:          f.maxPages,
		DryRun:            f.dryRun,
		Filter:            f.filter,
	}
}

// jobCommand builds a command that runs one paged maintenance operation and prints the result as JSON.
func jobCommand(use, short, op string, pick func(r *resolver.Resolver) jobs.BulkFunc) *cobra.Command {
	flags := &jobFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := utils.Validate(flags.request())
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := a.start(ctx); err != nil {
				return err
			}

			res, runErr := a.runner.Run(ctx, op, req, flags.resume, pick(a.resolver))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			return runErr
		},
	}
	flags.bind(cmd)
	if op == resolver.OpScanContainer {
		cmd.Flags().StringVar(&flags.filter, "filter", "", "JMESPath predicate documents must satisfy")
	}
	return cmd
}

func init() {
	rootCmd.AddCommand(
		jobCommand("locators", "Index nested node locations for every document of a type", resolver.OpAddNodeLocators,
			func(r *resolver.Resolver) jobs.BulkFunc { return r.AddNodeLocators }),
		jobCommand("headers", "Resolve and stamp entity header references for every document of a type", resolver.OpResolveEntityHeaders,
			func(r *resolver.Resolver) jobs.BulkFunc { return r.ResolveEntityHeaders }),
		jobCommand("edges", "Reconcile stored outbound edges with what each document references", resolver.OpReconcileEdges,
			func(r *resolver.Resolver) jobs.BulkFunc { return r.ReconcileEdges }),
		jobCommand("delete-type", "Delete every document of a type along with its index rows", resolver.OpDeleteByEntityType,
			func(r *resolver.Resolver) jobs.BulkFunc { return r.DeleteByEntityType }),
		jobCommand("scan", "List documents of a type, optionally filtered", resolver.OpScanContainer,
			func(r *resolver.Resolver) jobs.BulkFunc { return r.ScanContainer }),
	)
}
