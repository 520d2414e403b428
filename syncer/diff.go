package syncer

import (
	"context"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/masaomoc/roadworker/routefile"
)

// diffRecordSet compares expected with observed attribute by attribute and
// builds the record the zone should hold. The observed record is never
// mutated; the returned target is a copy of it with every differing
// attribute replaced by the expected value, or cleared when the expected
// side is absent. equal is true when no attribute differs.
//
// The health check registry is consulted only when at least one side
// carries a health check, and alias resolution only runs when the alias
// attribute differs.
func (s *Syncer) diffRecordSet(ctx context.Context, zone zoneRef, expected *routefile.RecordSet, observed *types.ResourceRecordSet) (equal bool, target types.ResourceRecordSet, err error) {
	target = cloneRecordSet(observed)
	changed := false

	// type and set_identifier are part of the lookup key, so in practice
	// they only ever differ in letter case
	if t := types.RRType(strings.ToUpper(expected.Type)); t != observed.Type {
		target.Type = t
		changed = true
	}

	if expected.SetIdentifier != aws.ToString(observed.SetIdentifier) {
		target.SetIdentifier = optString(expected.SetIdentifier)
		changed = true
	}

	if !equalInt64(expected.Weight, observed.Weight) {
		target.Weight = copyInt64(expected.Weight)
		changed = true
	}

	if !equalInt64(expected.TTL, observed.TTL) {
		target.TTL = copyInt64(expected.TTL)
		changed = true
	}

	if !slices.Equal(normalizeValues(expected.ResourceRecords), normalizeValues(recordValues(observed.ResourceRecords))) {
		target.ResourceRecords = toResourceRecords(expected.ResourceRecords)
		changed = true
	}

	if !equalAlias(expected.Alias, extractAlias(observed.AliasTarget)) {
		at, aerr := resolveAlias(zone, expected.Alias)
		if aerr != nil {
			return false, target, aerr
		}
		target.AliasTarget = at
		changed = true
	}

	if expected.Region != string(observed.Region) {
		target.Region = types.ResourceRecordSetRegion(expected.Region)
		changed = true
	}

	if !equalGeo(expected.GeoLocation, observed.GeoLocation) {
		target.GeoLocation = nil
		if expected.GeoLocation != nil {
			target.GeoLocation = toGeoLocation(expected.GeoLocation)
		}
		changed = true
	}

	if strings.ToUpper(expected.Failover) != string(observed.Failover) {
		target.Failover = types.ResourceRecordSetFailover(strings.ToUpper(expected.Failover))
		changed = true
	}

	switch {
	case expected.HealthCheck == nil && observed.HealthCheckId == nil:
	case expected.HealthCheck == nil:
		target.HealthCheckId = nil
		changed = true
	default:
		id, herr := s.health.FindOrCreate(ctx, expected.HealthCheck)
		if herr != nil {
			return false, target, herr
		}
		if aws.ToString(id) != aws.ToString(observed.HealthCheckId) {
			target.HealthCheckId = id
			changed = true
		}
	}

	return !changed, target, nil
}

func equalGeo(a *routefile.GeoLocation, b *types.GeoLocation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.ContinentCode == aws.ToString(b.ContinentCode) &&
		a.CountryCode == aws.ToString(b.CountryCode) &&
		a.SubdivisionCode == aws.ToString(b.SubdivisionCode)
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func recordValues(records []types.ResourceRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, aws.ToString(r.Value))
	}
	return out
}

// cloneRecordSet deep-copies the attributes the differ may replace, so the
// DELETE half of an update batch keeps the pre-change state.
func cloneRecordSet(rrset *types.ResourceRecordSet) types.ResourceRecordSet {
	out := *rrset
	out.Name = copyString(rrset.Name)
	out.SetIdentifier = copyString(rrset.SetIdentifier)
	out.Weight = copyInt64(rrset.Weight)
	out.TTL = copyInt64(rrset.TTL)
	out.HealthCheckId = copyString(rrset.HealthCheckId)

	if rrset.ResourceRecords != nil {
		out.ResourceRecords = make([]types.ResourceRecord, len(rrset.ResourceRecords))
		for i, r := range rrset.ResourceRecords {
			out.ResourceRecords[i] = types.ResourceRecord{Value: copyString(r.Value)}
		}
	}

	if rrset.AliasTarget != nil {
		at := *rrset.AliasTarget
		at.DNSName = copyString(rrset.AliasTarget.DNSName)
		at.HostedZoneId = copyString(rrset.AliasTarget.HostedZoneId)
		out.AliasTarget = &at
	}

	if rrset.GeoLocation != nil {
		g := *rrset.GeoLocation
		g.ContinentCode = copyString(rrset.GeoLocation.ContinentCode)
		g.CountryCode = copyString(rrset.GeoLocation.CountryCode)
		g.SubdivisionCode = copyString(rrset.GeoLocation.SubdivisionCode)
		out.GeoLocation = &g
	}

	return out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	return aws.String(*v)
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return aws.Int64(*v)
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return aws.String(v)
}
