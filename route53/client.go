// Package route53 wraps the AWS Route53 API behind the small surface the
// syncer needs, hiding pagination and request plumbing.
package route53

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsr53 "github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// API is the subset of the Route53 service client used by Client. Tests
// substitute a fake implementation.
type API interface {
	ListHostedZones(ctx context.Context, params *awsr53.ListHostedZonesInput, optFns ...func(*awsr53.Options)) (*awsr53.ListHostedZonesOutput, error)
	GetHostedZone(ctx context.Context, params *awsr53.GetHostedZoneInput, optFns ...func(*awsr53.Options)) (*awsr53.GetHostedZoneOutput, error)
	CreateHostedZone(ctx context.Context, params *awsr53.CreateHostedZoneInput, optFns ...func(*awsr53.Options)) (*awsr53.CreateHostedZoneOutput, error)
	DeleteHostedZone(ctx context.Context, params *awsr53.DeleteHostedZoneInput, optFns ...func(*awsr53.Options)) (*awsr53.DeleteHostedZoneOutput, error)
	AssociateVPCWithHostedZone(ctx context.Context, params *awsr53.AssociateVPCWithHostedZoneInput, optFns ...func(*awsr53.Options)) (*awsr53.AssociateVPCWithHostedZoneOutput, error)
	DisassociateVPCFromHostedZone(ctx context.Context, params *awsr53.DisassociateVPCFromHostedZoneInput, optFns ...func(*awsr53.Options)) (*awsr53.DisassociateVPCFromHostedZoneOutput, error)
	ListResourceRecordSets(ctx context.Context, params *awsr53.ListResourceRecordSetsInput, optFns ...func(*awsr53.Options)) (*awsr53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *awsr53.ChangeResourceRecordSetsInput, optFns ...func(*awsr53.Options)) (*awsr53.ChangeResourceRecordSetsOutput, error)
}

// Client is a thin wrapper over the Route53 service client.
type Client struct {
	api API
}

func New(cfg aws.Config) *Client {
	return NewWithAPI(awsr53.NewFromConfig(cfg))
}

func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// ListHostedZones returns every hosted zone in the account.
func (c *Client) ListHostedZones(ctx context.Context) ([]types.HostedZone, error) {
	var zones []types.HostedZone

	paginator := awsr53.NewListHostedZonesPaginator(c.api, &awsr53.ListHostedZonesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing hosted zones: %w", err)
		}
		zones = append(zones, page.HostedZones...)
	}

	return zones, nil
}

// GetHostedZoneVPCs returns the VPCs associated with a private hosted zone.
func (c *Client) GetHostedZoneVPCs(ctx context.Context, zoneID string) ([]types.VPC, error) {
	out, err := c.api.GetHostedZone(ctx, &awsr53.GetHostedZoneInput{Id: aws.String(zoneID)})
	if err != nil {
		return nil, fmt.Errorf("getting hosted zone %s: %w", zoneID, err)
	}

	return out.VPCs, nil
}

// CreateHostedZone creates a zone. A non-nil vpc makes the zone private and
// associates that VPC at creation time.
func (c *Client) CreateHostedZone(ctx context.Context, name, callerReference string, vpc *types.VPC) (*types.HostedZone, error) {
	in := &awsr53.CreateHostedZoneInput{
		Name:            aws.String(name),
		CallerReference: aws.String(callerReference),
		VPC:             vpc,
	}

	out, err := c.api.CreateHostedZone(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating hosted zone %s: %w", name, err)
	}

	return out.HostedZone, nil
}

func (c *Client) DeleteHostedZone(ctx context.Context, zoneID string) error {
	_, err := c.api.DeleteHostedZone(ctx, &awsr53.DeleteHostedZoneInput{Id: aws.String(zoneID)})
	if err != nil {
		return fmt.Errorf("deleting hosted zone %s: %w", zoneID, err)
	}

	return nil
}

func (c *Client) AssociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error {
	_, err := c.api.AssociateVPCWithHostedZone(ctx, &awsr53.AssociateVPCWithHostedZoneInput{
		HostedZoneId: aws.String(zoneID),
		VPC:          &vpc,
	})
	if err != nil {
		return fmt.Errorf("associating vpc %s with zone %s: %w", aws.ToString(vpc.VPCId), zoneID, err)
	}

	return nil
}

func (c *Client) DisassociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error {
	_, err := c.api.DisassociateVPCFromHostedZone(ctx, &awsr53.DisassociateVPCFromHostedZoneInput{
		HostedZoneId: aws.String(zoneID),
		VPC:          &vpc,
	})
	if err != nil {
		return fmt.Errorf("disassociating vpc %s from zone %s: %w", aws.ToString(vpc.VPCId), zoneID, err)
	}

	return nil
}

// ListResourceRecordSets returns every record set in a zone in provider
// order. Route53 pages this API with a (name, type, identifier) marker
// triple, so the SDK has no generated paginator for it.
func (c *Client) ListResourceRecordSets(ctx context.Context, zoneID string) ([]types.ResourceRecordSet, error) {
	var records []types.ResourceRecordSet

	in := &awsr53.ListResourceRecordSetsInput{HostedZoneId: aws.String(zoneID)}
	for {
		page, err := c.api.ListResourceRecordSets(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("listing record sets for zone %s: %w", zoneID, err)
		}

		records = append(records, page.ResourceRecordSets...)

		if !page.IsTruncated {
			break
		}
		in.StartRecordName = page.NextRecordName
		in.StartRecordType = page.NextRecordType
		in.StartRecordIdentifier = page.NextRecordIdentifier
	}

	return records, nil
}

// ChangeResourceRecordSets submits a single change batch, the only record
// mutation primitive Route53 offers.
func (c *Client) ChangeResourceRecordSets(ctx context.Context, zoneID string, changes []types.Change) error {
	_, err := c.api.ChangeResourceRecordSets(ctx, &awsr53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch:  &types.ChangeBatch{Changes: changes},
	})
	if err != nil {
		return fmt.Errorf("changing record sets in zone %s: %w", zoneID, err)
	}

	return nil
}
