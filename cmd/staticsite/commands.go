package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikecbrant/secure-static-site/internal/awssdk/deploy"
	"github.com/mikecbrant/secure-static-site/internal/common"
	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the site config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := site.Load(rootCfg.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (siteDomain=%s, assetDir=%s)\n", rootCfg.configPath, cfg.SiteDomain(), cfg.AssetDir)
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the component dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return plan.Render(topologySteps(), plan.Format(format), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(plan.FormatDOT), "Output format: dot or mermaid")
	return cmd
}

// topologySteps lifts the site topology into plan steps without build functions.
func topologySteps() []plan.Step {
	topo := site.Topology()
	steps := make([]plan.Step, 0, len(topo))
	for _, c := range topo {
		steps = append(steps, plan.Step{ID: c.ID, DependsOn: c.DependsOn, Description: c.Description})
	}
	return steps
}

// targetFlags address an existing bucket and distribution, either directly or through the
// JSON printed by `pulumi stack output --json`.
type targetFlags struct {
	outputsPath    string
	siteName       string
	bucket         string
	distributionID string
	host           string
	region         string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.outputsPath, "outputs", "o", "", "Stack outputs JSON file")
	flags.StringVar(&f.siteName, "site", "", "Component name in the outputs file when it holds several sites")
	flags.StringVar(&f.bucket, "bucket", "", "Site bucket name")
	flags.StringVar(&f.distributionID, "distribution-id", "", "CloudFront distribution ID")
	flags.StringVar(&f.host, "host", "", "Host to smoke-test through the CDN")
	flags.StringVarP(&f.region, "region", "r", "", "Bucket region (defaults to the AWS config chain)")
}

// resolve merges explicit flags over the outputs file.
func (f *targetFlags) resolve() (site.Outputs, error) {
	var out site.Outputs
	if f.outputsPath != "" {
		b, err := os.ReadFile(f.outputsPath)
		if err != nil {
			return site.Outputs{}, err
		}
		if out, err = site.ParseOutputsFor(b, f.siteName); err != nil {
			return site.Outputs{}, err
		}
	}
	if f.bucket != "" {
		out.BucketName = f.bucket
	}
	if f.distributionID != "" {
		out.DistributionID = f.distributionID
	}
	if f.host != "" {
		out.DistributionDomainName = f.host
	}
	if out.BucketName == "" {
		return site.Outputs{}, errors.New("bucket is required: pass --bucket or --outputs")
	}
	return out, nil
}

func newDeployCmd() *cobra.Command {
	var (
		target  targetFlags
		source  string
		wait    time.Duration
		workers int
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Sync the asset directory to the bucket and invalidate the distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := site.Load(rootCfg.configPath)
			if err != nil {
				return err
			}
			out, err := target.resolve()
			if err != nil {
				return err
			}
			zl, logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			if source == "" {
				source = cfg.AssetDir
			}
			d, err := deploy.NewDefault(cmd.Context(), target.region, logger)
			if err != nil {
				return err
			}
			res, err := d.Deploy(cmd.Context(), deploy.Request{
				Bucket:         out.BucketName,
				DistributionID: out.DistributionID,
				SourceDir:      source,
				Exclude:        cfg.Exclude,
				Prune:          cfg.Prune == nil || *cfg.Prune,
				CacheControl:   cfg.CacheControl,
				Concurrency:    workers,
				Wait:           wait,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d, skipped %d, deleted %d; invalidation %s (%s)\n",
				len(res.Sync.Uploaded), len(res.Sync.Skipped), len(res.Sync.Deleted), res.Invalidation.ID, res.Invalidation.Status)
			return nil
		},
	}
	target.register(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&source, "source", "s", "", "Asset directory (defaults to assetDir from the config)")
	flags.DurationVar(&wait, "wait", 0, "Wait up to this long for the invalidation to complete")
	flags.IntVar(&workers, "concurrency", 8, "Parallel uploads")
	return cmd
}

func newSmokeCmd() *cobra.Command {
	var (
		target targetFlags
		cases  string
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run HTTP smoke checks against the deployed site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := target.resolve()
			if err != nil {
				return err
			}
			if out.DistributionDomainName == "" {
				return errors.New("host is required: pass --host or --outputs")
			}
			zl, logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			if cases == "" {
				if cfg, err := site.Load(rootCfg.configPath); err == nil {
					cases = cfg.CanaryFile
				}
			}
			list, err := common.LoadSmokeCases(cases)
			if err != nil {
				return err
			}
			return runSmoke(cmd, out, target.region, list, logger)
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&cases, "cases", "", "Additional smoke check YAML file")
	return cmd
}

func runSmoke(cmd *cobra.Command, out site.Outputs, region string, cases []common.SmokeCase, logger logging.Logger) error {
	tgt := common.SmokeTarget{Host: out.DistributionDomainName, Bucket: out.BucketName, Region: region}
	results, err := common.RunSmokeChecks(cmd.Context(), common.NewSmokeClient(nil), tgt, cases, logger)
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %d %s\n", r.Case.Name, r.Status, r.URL)
	}
	return err
}
