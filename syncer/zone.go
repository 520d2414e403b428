package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/masaomoc/roadworker/routefile"
)

// syncZone converges the VPC associations and record sets of one hosted
// zone against its definition.
func (s *Syncer) syncZone(ctx context.Context, expected routefile.Zone, zone types.HostedZone) (Result, error) {
	var result Result

	ref := zoneRef{
		ID:   aws.ToString(zone.Id),
		Name: aws.ToString(zone.Name),
	}
	if ref.Name == "" {
		ref.Name = expected.Name
	}

	if len(expected.VPCs) > 0 {
		res, err := s.syncVPCs(ctx, ref, expected.VPCs)
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	// a dry-run-fabricated zone has no id to list records from
	var observed []types.ResourceRecordSet
	if ref.ID != "" {
		var err error
		observed, err = s.provider.ListResourceRecordSets(ctx, ref.ID)
		if err != nil {
			return result, fmt.Errorf("failed to list record sets for zone %s: %w", ref.Name, err)
		}
	}

	observedByKey := make(map[recordKey]*types.ResourceRecordSet, len(observed))
	for i := range observed {
		observedByKey[keyOf(&observed[i])] = &observed[i]
	}

	matched := make(map[recordKey]bool, len(expected.Records))
	for i := range expected.Records {
		rs := &expected.Records[i]
		key := keyFor(rs)
		matched[key] = true

		res, err := s.syncRecordSet(ctx, ref, rs, observedByKey[key])
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	for i := range observed {
		if matched[keyOf(&observed[i])] {
			continue
		}

		res, err := s.deleteRecordSet(ctx, ref, &observed[i])
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// createZone creates a missing hosted zone. Zones with VPC definitions are
// created private, carrying the first VPC; the rest are associated by
// syncVPCs afterwards. Dry-run fabricates an in-memory zone instead.
func (s *Syncer) createZone(ctx context.Context, z routefile.Zone) (*types.HostedZone, Result, error) {
	var result Result

	var vpc *types.VPC
	if len(z.VPCs) > 0 {
		v := toVPC(z.VPCs[0])
		vpc = &v
	}

	s.logger.Info("creating hosted zone", "zone", z.Name, "private", vpc != nil)
	result.ZonesCreated++

	if s.opts.DryRun {
		return &types.HostedZone{Name: aws.String(z.Name)}, result, nil
	}

	callerReference := fmt.Sprintf("roadworker %s %s", time.Now().UTC().Format(time.RFC3339Nano), z.Name)
	zone, err := s.provider.CreateHostedZone(ctx, z.Name, callerReference, vpc)
	if err != nil {
		return nil, result, fmt.Errorf("failed to create hosted zone %s: %w", z.Name, err)
	}

	return zone, result, nil
}

// deleteZone removes a hosted zone that is absent from the Routefile. It
// refuses to act without the force option. Records are deleted first; the
// apex guard leaves the zone's own SOA/NS for the zone delete to take out.
func (s *Syncer) deleteZone(ctx context.Context, zone types.HostedZone) (Result, error) {
	var result Result

	name := aws.ToString(zone.Name)
	if !s.opts.Force {
		s.logger.Warn("zone is not defined; skipping delete (use force to delete)", "zone", name)
		return result, nil
	}

	ref := zoneRef{ID: aws.ToString(zone.Id), Name: name}

	records, err := s.provider.ListResourceRecordSets(ctx, ref.ID)
	if err != nil {
		return result, fmt.Errorf("failed to list record sets for zone %s: %w", name, err)
	}

	for i := range records {
		res, err := s.deleteRecordSet(ctx, ref, &records[i])
		result.add(res)
		if err != nil {
			return result, err
		}
	}

	s.logger.Info("deleting hosted zone", "zone", name)
	if !s.opts.DryRun {
		if err := s.provider.DeleteHostedZone(ctx, ref.ID); err != nil {
			return result, fmt.Errorf("failed to delete hosted zone %s: %w", name, err)
		}
	}
	result.ZonesDeleted++

	return result, nil
}

// syncVPCs converges the VPC associations of a private zone: associate the
// defined VPCs that are missing, disassociate the rest.
func (s *Syncer) syncVPCs(ctx context.Context, ref zoneRef, expected []routefile.VPC) (Result, error) {
	var result Result

	var observed []types.VPC
	if ref.ID != "" {
		var err error
		observed, err = s.provider.GetHostedZoneVPCs(ctx, ref.ID)
		if err != nil {
			return result, fmt.Errorf("failed to get vpc associations for zone %s: %w", ref.Name, err)
		}
	} else if len(expected) > 0 {
		// fabricated dry-run zone: its create already carried the first VPC
		observed = []types.VPC{toVPC(expected[0])}
	}

	type vpcKey struct{ id, region string }

	observedSet := make(map[vpcKey]bool, len(observed))
	for _, v := range observed {
		observedSet[vpcKey{aws.ToString(v.VPCId), string(v.VPCRegion)}] = true
	}

	expectedSet := make(map[vpcKey]bool, len(expected))
	for _, v := range expected {
		key := vpcKey{v.ID, v.Region}
		expectedSet[key] = true
		if observedSet[key] {
			continue
		}

		s.logger.Info("associating vpc", "zone", ref.Name, "vpc", v.ID, "region", v.Region)
		if !s.opts.DryRun {
			if err := s.provider.AssociateVPC(ctx, ref.ID, toVPC(v)); err != nil {
				return result, err
			}
		}
		result.VPCsAssociated++
	}

	for _, v := range observed {
		if expectedSet[vpcKey{aws.ToString(v.VPCId), string(v.VPCRegion)}] {
			continue
		}

		s.logger.Info("disassociating vpc", "zone", ref.Name, "vpc", aws.ToString(v.VPCId), "region", string(v.VPCRegion))
		if !s.opts.DryRun {
			if err := s.provider.DisassociateVPC(ctx, ref.ID, v); err != nil {
				return result, err
			}
		}
		result.VPCsDisassociated++
	}

	return result, nil
}

func toVPC(v routefile.VPC) types.VPC {
	return types.VPC{
		VPCId:     aws.String(v.ID),
		VPCRegion: types.VPCRegion(v.Region),
	}
}
