package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/masaomoc/roadworker/healthcheck"
	"github.com/masaomoc/roadworker/route53"
	"github.com/masaomoc/roadworker/routefile"
	"github.com/masaomoc/roadworker/syncer"
)

type config struct {
	File   string
	DryRun bool
	Force  bool
}

func (c *config) Validate() error {
	if c.File == "" {
		return errors.New("a routefile path is required")
	}

	return nil
}

func loadConfig() (config, error) {
	flags := pflag.NewFlagSet("roadworker", pflag.ContinueOnError)
	flags.String("file", "Routefile.yaml", "path to the zone definition file")
	flags.Bool("dry-run", false, "report changes without applying them")
	flags.Bool("force", false, "allow deletion of zones missing from the definition file")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("roadworker")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return config{}, err
	}

	c := config{
		File:   v.GetString("file"),
		DryRun: v.GetBool("dry-run"),
		Force:  v.GetBool("force"),
	}

	return c, nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	runId := uuid.New().String()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger = logger.With("runId", runId)

	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("error validating config: %w", err)
	}

	rf, err := routefile.Load(config.File)
	if err != nil {
		return fmt.Errorf("error loading routefile: %w", err)
	}

	logger.Info("Starting sync", "file", config.File, "dryRun", config.DryRun, "force", config.Force)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("error loading aws config: %w", err)
	}

	client := route53.New(awsCfg)
	registry := healthcheck.New(awsCfg, config.DryRun, logger)

	s := syncer.New(client, registry, syncer.Options{DryRun: config.DryRun, Force: config.Force}, logger)

	result, err := s.Run(ctx, rf)
	if err != nil {
		return fmt.Errorf("error running sync: %w", err)
	}

	logger.Info("Sync completed",
		"changed", result.Changed(),
		"zonesCreated", result.ZonesCreated,
		"zonesDeleted", result.ZonesDeleted,
		"recordsCreated", result.RecordsCreated,
		"recordsUpdated", result.RecordsUpdated,
		"recordsDeleted", result.RecordsDeleted,
		"vpcsAssociated", result.VPCsAssociated,
		"vpcsDisassociated", result.VPCsDisassociated)

	return nil
}
