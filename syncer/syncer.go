// Package syncer converges live Route53 state to a Routefile definition.
// It computes the minimal create/update/delete set per zone and record and
// applies it, or only reports it in dry-run mode.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/masaomoc/roadworker/healthcheck"
	"github.com/masaomoc/roadworker/routefile"
)

// DNSProvider is the provider surface the syncer drives. Implemented by
// route53.Client; tests substitute a fake.
type DNSProvider interface {
	ListHostedZones(ctx context.Context) ([]types.HostedZone, error)
	GetHostedZoneVPCs(ctx context.Context, zoneID string) ([]types.VPC, error)
	CreateHostedZone(ctx context.Context, name, callerReference string, vpc *types.VPC) (*types.HostedZone, error)
	DeleteHostedZone(ctx context.Context, zoneID string) error
	AssociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error
	DisassociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error
	ListResourceRecordSets(ctx context.Context, zoneID string) ([]types.ResourceRecordSet, error)
	ChangeResourceRecordSets(ctx context.Context, zoneID string, changes []types.Change) error
}

// HealthCheckRegistry resolves health check specs to provider ids. The
// syncer only ever compares in the spec-to-id direction, so this is the
// whole surface it needs from healthcheck.Registry.
type HealthCheckRegistry interface {
	FindOrCreate(ctx context.Context, spec *healthcheck.Spec) (*string, error)
}

// Options configures a run. DryRun suppresses every mutating provider call;
// Force allows deletion of zones absent from the Routefile.
type Options struct {
	DryRun bool
	Force  bool
}

type Syncer struct {
	provider DNSProvider
	health   HealthCheckRegistry
	opts     Options
	logger   *slog.Logger
}

func New(provider DNSProvider, health HealthCheckRegistry, opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Syncer{
		provider: provider,
		health:   health,
		opts:     opts,
		logger:   logger,
	}
}

// Run reconciles every zone in the Routefile against the live account:
// defined zones are created or converged, zones missing from the definition
// are deleted under Force and left alone (with a warning) otherwise.
// Execution is strictly sequential; the first provider error aborts the run
// with the partial Result accumulated so far.
func (s *Syncer) Run(ctx context.Context, rf *routefile.Routefile) (Result, error) {
	var result Result

	observed, err := s.provider.ListHostedZones(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list hosted zones: %w", err)
	}

	observedByName := make(map[string]types.HostedZone, len(observed))
	for _, z := range observed {
		observedByName[normalizeName(aws.ToString(z.Name))] = z
	}

	matched := make(map[string]bool, len(rf.Zones))
	for _, expected := range rf.Zones {
		key := normalizeName(expected.Name)
		matched[key] = true

		zone, ok := observedByName[key]
		if !ok {
			created, res, err := s.createZone(ctx, expected)
			result.add(res)
			if err != nil {
				return result, err
			}
			zone = *created
		}

		res, err := s.syncZone(ctx, expected, zone)
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	for _, z := range observed {
		if matched[normalizeName(aws.ToString(z.Name))] {
			continue
		}

		res, err := s.deleteZone(ctx, z)
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}
