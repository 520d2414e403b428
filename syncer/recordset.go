package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/masaomoc/roadworker/routefile"
)

// zoneRef carries the identity of the zone a record belongs to. Name falls
// back to the Routefile name while a zone is mid-creation and the provider
// has not assigned one yet.
type zoneRef struct {
	ID   string
	Name string
}

// recordKey identifies a record set within a zone.
type recordKey struct {
	name          string
	rtype         string
	setIdentifier string
}

func keyFor(rs *routefile.RecordSet) recordKey {
	return recordKey{
		name:          normalizeName(rs.Name),
		rtype:         strings.ToUpper(rs.Type),
		setIdentifier: rs.SetIdentifier,
	}
}

func keyOf(rrset *types.ResourceRecordSet) recordKey {
	return recordKey{
		name:          normalizeName(aws.ToString(rrset.Name)),
		rtype:         strings.ToUpper(string(rrset.Type)),
		setIdentifier: aws.ToString(rrset.SetIdentifier),
	}
}

// recordID renders the identifier used in logs: name + type, plus the set
// identifier when present.
func recordID(name, rtype, setIdentifier string) string {
	if setIdentifier != "" {
		return fmt.Sprintf("%s %s (%s)", name, rtype, setIdentifier)
	}
	return fmt.Sprintf("%s %s", name, rtype)
}

// syncRecordSet converges one (name, type, set_identifier) key: create when
// the zone has no record for it, replace when the differ finds a change,
// nothing otherwise.
func (s *Syncer) syncRecordSet(ctx context.Context, zone zoneRef, expected *routefile.RecordSet, observed *types.ResourceRecordSet) (Result, error) {
	var result Result

	if observed == nil {
		return s.createRecordSet(ctx, zone, expected)
	}

	equal, target, err := s.diffRecordSet(ctx, zone, expected, observed)
	if err != nil {
		return result, err
	}
	if equal {
		s.logger.Debug("record is up to date", "zone", zone.Name, "record", recordID(expected.Name, expected.Type, expected.SetIdentifier))
		return result, nil
	}

	s.logger.Info("updating record", "zone", zone.Name, "record", recordID(expected.Name, expected.Type, expected.SetIdentifier))

	// one batch with DELETE of the observed record followed by CREATE of
	// the target, so the provider applies an atomic replace
	changes := []types.Change{
		{Action: types.ChangeActionDelete, ResourceRecordSet: observed},
		{Action: types.ChangeActionCreate, ResourceRecordSet: &target},
	}
	if !s.opts.DryRun {
		if err := s.provider.ChangeResourceRecordSets(ctx, zone.ID, changes); err != nil {
			return result, err
		}
	}
	result.RecordsUpdated++

	return result, nil
}

func (s *Syncer) createRecordSet(ctx context.Context, zone zoneRef, expected *routefile.RecordSet) (Result, error) {
	var result Result

	rrset, err := s.buildRecordSet(ctx, zone, expected)
	if err != nil {
		return result, err
	}

	s.logger.Info("creating record", "zone", zone.Name, "record", recordID(expected.Name, expected.Type, expected.SetIdentifier))

	changes := []types.Change{
		{Action: types.ChangeActionCreate, ResourceRecordSet: &rrset},
	}
	if !s.opts.DryRun {
		if err := s.provider.ChangeResourceRecordSets(ctx, zone.ID, changes); err != nil {
			return result, err
		}
	}
	result.RecordsCreated++

	return result, nil
}

func (s *Syncer) deleteRecordSet(ctx context.Context, zone zoneRef, observed *types.ResourceRecordSet) (Result, error) {
	var result Result

	name := aws.ToString(observed.Name)
	id := recordID(name, string(observed.Type), aws.ToString(observed.SetIdentifier))

	if isProtected(observed, zone.Name) {
		s.logger.Debug("skipping protected record", "zone", zone.Name, "record", id)
		return result, nil
	}

	s.logger.Info("deleting record", "zone", zone.Name, "record", id)

	changes := []types.Change{
		{Action: types.ChangeActionDelete, ResourceRecordSet: observed},
	}
	if !s.opts.DryRun {
		if err := s.provider.ChangeResourceRecordSets(ctx, zone.ID, changes); err != nil {
			return result, err
		}
	}
	result.RecordsDeleted++

	return result, nil
}

// buildRecordSet assembles the provider record from every attribute the
// definition sets. Alias and health check resolution only run when those
// attributes are present.
func (s *Syncer) buildRecordSet(ctx context.Context, zone zoneRef, rs *routefile.RecordSet) (types.ResourceRecordSet, error) {
	out := types.ResourceRecordSet{
		Name: aws.String(rs.Name),
		Type: types.RRType(strings.ToUpper(rs.Type)),
	}

	if rs.SetIdentifier != "" {
		out.SetIdentifier = aws.String(rs.SetIdentifier)
	}
	if rs.Weight != nil {
		out.Weight = copyInt64(rs.Weight)
	}
	if rs.TTL != nil {
		out.TTL = copyInt64(rs.TTL)
	}
	out.ResourceRecords = toResourceRecords(rs.ResourceRecords)

	if rs.Alias != nil {
		at, err := resolveAlias(zone, rs.Alias)
		if err != nil {
			return out, err
		}
		out.AliasTarget = at
	}

	if rs.Region != "" {
		out.Region = types.ResourceRecordSetRegion(rs.Region)
	}
	if rs.GeoLocation != nil {
		out.GeoLocation = toGeoLocation(rs.GeoLocation)
	}
	if rs.Failover != "" {
		out.Failover = types.ResourceRecordSetFailover(strings.ToUpper(rs.Failover))
	}

	if rs.HealthCheck != nil {
		id, err := s.health.FindOrCreate(ctx, rs.HealthCheck)
		if err != nil {
			return out, err
		}
		out.HealthCheckId = id
	}

	return out, nil
}

func toResourceRecords(values []string) []types.ResourceRecord {
	var out []types.ResourceRecord
	for _, v := range values {
		out = append(out, types.ResourceRecord{Value: aws.String(v)})
	}
	return out
}

func toGeoLocation(g *routefile.GeoLocation) *types.GeoLocation {
	out := &types.GeoLocation{}
	if g.ContinentCode != "" {
		out.ContinentCode = aws.String(g.ContinentCode)
	}
	if g.CountryCode != "" {
		out.CountryCode = aws.String(g.CountryCode)
	}
	if g.SubdivisionCode != "" {
		out.SubdivisionCode = aws.String(g.SubdivisionCode)
	}
	return out
}
