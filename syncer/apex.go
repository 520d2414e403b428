package syncer

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// isProtected reports whether rrset is the apex SOA or NS record of its
// zone. Deleting either invalidates the zone, so the delete path must leave
// them for the zone delete to remove.
func isProtected(rrset *types.ResourceRecordSet, zoneName string) bool {
	switch strings.ToUpper(string(rrset.Type)) {
	case "SOA", "NS":
	default:
		return false
	}

	return normalizeName(aws.ToString(rrset.Name)) == normalizeName(zoneName)
}
