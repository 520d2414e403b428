// Package routefile defines the declarative zone definition format and its
// loader. A Routefile describes the hosted zones and resource record sets
// that should exist; the syncer converges the live provider state to it.
package routefile

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/masaomoc/roadworker/healthcheck"
)

type Routefile struct {
	Zones []Zone `yaml:"zones"`
}

// Zone is a hosted zone definition. A zone with one or more VPCs is private.
type Zone struct {
	Name    string      `yaml:"name"`
	VPCs    []VPC       `yaml:"vpcs,omitempty"`
	Records []RecordSet `yaml:"records,omitempty"`
}

type VPC struct {
	ID     string `yaml:"id"`
	Region string `yaml:"region"`
}

// RecordSet is a resource record set definition. Within a zone a record set
// is identified by (name, type, set_identifier).
type RecordSet struct {
	Name            string            `yaml:"name"`
	Type            string            `yaml:"type"`
	SetIdentifier   string            `yaml:"set_identifier,omitempty"`
	Weight          *int64            `yaml:"weight,omitempty"`
	TTL             *int64            `yaml:"ttl,omitempty"`
	ResourceRecords []string          `yaml:"values,omitempty"`
	Alias           *Alias            `yaml:"alias,omitempty"`
	Region          string            `yaml:"region,omitempty"`
	GeoLocation     *GeoLocation      `yaml:"geo_location,omitempty"`
	Failover        string            `yaml:"failover,omitempty"`
	HealthCheck     *healthcheck.Spec `yaml:"health_check,omitempty"`
}

// Alias is an alias target. When HostedZoneID is empty the syncer resolves
// it from the owning zone, which only works for targets inside that zone.
type Alias struct {
	DNSName              string `yaml:"dns_name"`
	HostedZoneID         string `yaml:"hosted_zone_id,omitempty"`
	EvaluateTargetHealth bool   `yaml:"evaluate_target_health,omitempty"`
}

type GeoLocation struct {
	ContinentCode   string `yaml:"continent,omitempty"`
	CountryCode     string `yaml:"country,omitempty"`
	SubdivisionCode string `yaml:"subdivision,omitempty"`
}

// Load reads and validates a Routefile from path.
func Load(path string) (*Routefile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routefile: %w", err)
	}

	var rf Routefile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing routefile: %w", err)
	}

	if err := rf.Validate(); err != nil {
		return nil, err
	}

	return &rf, nil
}

func (rf *Routefile) Validate() error {
	seenZones := map[string]bool{}

	for _, z := range rf.Zones {
		if z.Name == "" {
			return fmt.Errorf("zone with empty name")
		}

		zoneKey := foldName(z.Name)
		if seenZones[zoneKey] {
			return fmt.Errorf("duplicate zone %q", z.Name)
		}
		seenZones[zoneKey] = true

		for _, v := range z.VPCs {
			if v.ID == "" || v.Region == "" {
				return fmt.Errorf("zone %q: vpc entries require both id and region", z.Name)
			}
		}

		seenRecords := map[string]bool{}
		for _, r := range z.Records {
			if r.Name == "" {
				return fmt.Errorf("zone %q: record with empty name", z.Name)
			}
			if r.Type == "" {
				return fmt.Errorf("zone %q: record %q has no type", z.Name, r.Name)
			}
			if r.Alias != nil && r.Alias.DNSName == "" {
				return fmt.Errorf("zone %q: record %q alias requires dns_name", z.Name, r.Name)
			}

			key := foldName(r.Name) + "|" + strings.ToUpper(r.Type) + "|" + r.SetIdentifier
			if seenRecords[key] {
				return fmt.Errorf("zone %q: duplicate record (%s %s %s)", z.Name, r.Name, r.Type, r.SetIdentifier)
			}
			seenRecords[key] = true
		}
	}

	return nil
}

func foldName(s string) string {
	return strings.TrimSuffix(strings.ToLower(s), ".")
}
