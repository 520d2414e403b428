// Package healthcheck maps health check specifications to Route53 health
// check ids. Record sets reference health checks by spec; the registry
// resolves a spec to an existing provider-side check or creates one.
package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsr53 "github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/google/uuid"
)

// Spec is the declarative form of a health check.
type Spec struct {
	Type             string `yaml:"type"`
	IPAddress        string `yaml:"ip_address,omitempty"`
	Host             string `yaml:"host,omitempty"`
	Port             int32  `yaml:"port,omitempty"`
	ResourcePath     string `yaml:"resource_path,omitempty"`
	SearchString     string `yaml:"search_string,omitempty"`
	RequestInterval  int32  `yaml:"request_interval,omitempty"`
	FailureThreshold int32  `yaml:"failure_threshold,omitempty"`
}

// API is the subset of the Route53 client used by the registry.
type API interface {
	ListHealthChecks(ctx context.Context, params *awsr53.ListHealthChecksInput, optFns ...func(*awsr53.Options)) (*awsr53.ListHealthChecksOutput, error)
	CreateHealthCheck(ctx context.Context, params *awsr53.CreateHealthCheckInput, optFns ...func(*awsr53.Options)) (*awsr53.CreateHealthCheckOutput, error)
	GetHealthCheck(ctx context.Context, params *awsr53.GetHealthCheckInput, optFns ...func(*awsr53.Options)) (*awsr53.GetHealthCheckOutput, error)
}

// Registry resolves specs to health check ids, caching provider state for
// the duration of a run. In dry-run mode missing checks are given placeholder
// ids instead of being created.
type Registry struct {
	api    API
	dryRun bool
	logger *slog.Logger

	loaded bool
	byID   map[string]Spec
	bySpec map[Spec]string
}

func New(cfg aws.Config, dryRun bool, logger *slog.Logger) *Registry {
	return NewWithAPI(awsr53.NewFromConfig(cfg), dryRun, logger)
}

func NewWithAPI(api API, dryRun bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Registry{
		api:    api,
		dryRun: dryRun,
		logger: logger,
		byID:   map[string]Spec{},
		bySpec: map[Spec]string{},
	}
}

// FindOrCreate returns the id of a health check matching spec, creating one
// if none exists. A nil spec yields a nil id.
func (r *Registry) FindOrCreate(ctx context.Context, spec *Spec) (*string, error) {
	if spec == nil {
		return nil, nil
	}

	key := spec.canonical()
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	if id, ok := r.bySpec[key]; ok {
		return aws.String(id), nil
	}

	if r.dryRun {
		id := "dry-run-" + uuid.New().String()
		r.bySpec[key] = id
		r.byID[id] = key
		r.logger.Info("would create health check", "type", key.Type, "host", key.Host, "ipAddress", key.IPAddress)
		return aws.String(id), nil
	}

	out, err := r.api.CreateHealthCheck(ctx, &awsr53.CreateHealthCheckInput{
		CallerReference:   aws.String(uuid.New().String()),
		HealthCheckConfig: key.toConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating health check: %w", err)
	}

	id := aws.ToString(out.HealthCheck.Id)
	r.bySpec[key] = id
	r.byID[id] = key
	r.logger.Info("created health check", "id", id, "type", key.Type)

	return aws.String(id), nil
}

// Lookup returns the spec behind a health check id.
func (r *Registry) Lookup(ctx context.Context, id string) (*Spec, error) {
	if spec, ok := r.byID[id]; ok {
		return &spec, nil
	}

	out, err := r.api.GetHealthCheck(ctx, &awsr53.GetHealthCheckInput{HealthCheckId: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("looking up health check %s: %w", id, err)
	}

	spec := fromConfig(out.HealthCheck.HealthCheckConfig)
	r.byID[id] = spec
	r.bySpec[spec] = id

	return &spec, nil
}

// load fetches every existing health check once per run.
func (r *Registry) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	paginator := awsr53.NewListHealthChecksPaginator(r.api, &awsr53.ListHealthChecksInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing health checks: %w", err)
		}

		for _, hc := range page.HealthChecks {
			spec := fromConfig(hc.HealthCheckConfig)
			id := aws.ToString(hc.Id)
			r.byID[id] = spec
			r.bySpec[spec] = id
		}
	}

	r.loaded = true
	return nil
}

// canonical folds the fields that are compared case-insensitively.
func (s *Spec) canonical() Spec {
	out := *s
	out.Type = strings.ToUpper(out.Type)
	out.Host = strings.TrimSuffix(strings.ToLower(out.Host), ".")
	return out
}

func (s Spec) toConfig() *types.HealthCheckConfig {
	cfg := &types.HealthCheckConfig{
		Type: types.HealthCheckType(s.Type),
	}

	if s.IPAddress != "" {
		cfg.IPAddress = aws.String(s.IPAddress)
	}
	if s.Host != "" {
		cfg.FullyQualifiedDomainName = aws.String(s.Host)
	}
	if s.Port != 0 {
		cfg.Port = aws.Int32(s.Port)
	}
	if s.ResourcePath != "" {
		cfg.ResourcePath = aws.String(s.ResourcePath)
	}
	if s.SearchString != "" {
		cfg.SearchString = aws.String(s.SearchString)
	}
	if s.RequestInterval != 0 {
		cfg.RequestInterval = aws.Int32(s.RequestInterval)
	}
	if s.FailureThreshold != 0 {
		cfg.FailureThreshold = aws.Int32(s.FailureThreshold)
	}

	return cfg
}

func fromConfig(cfg *types.HealthCheckConfig) Spec {
	if cfg == nil {
		return Spec{}
	}

	s := Spec{
		Type:             string(cfg.Type),
		IPAddress:        aws.ToString(cfg.IPAddress),
		Host:             aws.ToString(cfg.FullyQualifiedDomainName),
		ResourcePath:     aws.ToString(cfg.ResourcePath),
		SearchString:     aws.ToString(cfg.SearchString),
		Port:             aws.ToInt32(cfg.Port),
		RequestInterval:  aws.ToInt32(cfg.RequestInterval),
		FailureThreshold: aws.ToInt32(cfg.FailureThreshold),
	}

	return s.canonical()
}
