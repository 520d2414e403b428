package syncer

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/masaomoc/roadworker/routefile"
)

// resolveAlias translates an alias definition into the provider form. The
// hosted zone id comes from the definition when given, otherwise from the
// owning zone, which requires the target to live inside that zone.
func resolveAlias(zone zoneRef, alias *routefile.Alias) (*types.AliasTarget, error) {
	if alias == nil {
		return nil, nil
	}

	zoneID := alias.HostedZoneID
	if zoneID == "" {
		if !inZone(alias.DNSName, zone.Name) {
			return nil, fmt.Errorf("cannot resolve hosted zone id for alias target %q outside zone %q: set hosted_zone_id", alias.DNSName, zone.Name)
		}
		zoneID = zone.ID
	}

	return &types.AliasTarget{
		DNSName:              aws.String(alias.DNSName),
		HostedZoneId:         aws.String(zoneID),
		EvaluateTargetHealth: alias.EvaluateTargetHealth,
	}, nil
}

// extractAlias is the inverse of resolveAlias: nil when no alias is set.
func extractAlias(at *types.AliasTarget) *routefile.Alias {
	if at == nil {
		return nil
	}

	return &routefile.Alias{
		DNSName:              aws.ToString(at.DNSName),
		HostedZoneID:         aws.ToString(at.HostedZoneId),
		EvaluateTargetHealth: at.EvaluateTargetHealth,
	}
}

// equalAlias compares alias pairs with the target name folded through the
// DNS-name rule. The hosted zone id is derived state and not compared.
func equalAlias(a, b *routefile.Alias) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return normalizeName(a.DNSName) == normalizeName(b.DNSName) &&
		a.EvaluateTargetHealth == b.EvaluateTargetHealth
}

func inZone(name, zoneName string) bool {
	name = normalizeName(name)
	zoneName = normalizeName(zoneName)
	return name == zoneName || strings.HasSuffix(name, "."+zoneName)
}
