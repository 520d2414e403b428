package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaomoc/roadworker/healthcheck"
	"github.com/masaomoc/roadworker/routefile"
)

type capturedBatch struct {
	zoneID  string
	changes []types.Change
}

type fakeProvider struct {
	zones   []types.HostedZone
	vpcs    map[string][]types.VPC
	records map[string][]types.ResourceRecordSet

	batches       []capturedBatch
	createdZones  []string
	deletedZones  []string
	associated    []types.VPC
	disassociated []types.VPC
}

func (f *fakeProvider) ListHostedZones(ctx context.Context) ([]types.HostedZone, error) {
	return f.zones, nil
}

func (f *fakeProvider) GetHostedZoneVPCs(ctx context.Context, zoneID string) ([]types.VPC, error) {
	return f.vpcs[zoneID], nil
}

func (f *fakeProvider) CreateHostedZone(ctx context.Context, name, callerReference string, vpc *types.VPC) (*types.HostedZone, error) {
	f.createdZones = append(f.createdZones, name)
	return &types.HostedZone{
		Id:   aws.String("/hostedzone/NEW" + fmt.Sprint(len(f.createdZones))),
		Name: aws.String(name + "."),
	}, nil
}

func (f *fakeProvider) DeleteHostedZone(ctx context.Context, zoneID string) error {
	f.deletedZones = append(f.deletedZones, zoneID)
	return nil
}

func (f *fakeProvider) AssociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error {
	f.associated = append(f.associated, vpc)
	return nil
}

func (f *fakeProvider) DisassociateVPC(ctx context.Context, zoneID string, vpc types.VPC) error {
	f.disassociated = append(f.disassociated, vpc)
	return nil
}

func (f *fakeProvider) ListResourceRecordSets(ctx context.Context, zoneID string) ([]types.ResourceRecordSet, error) {
	return f.records[zoneID], nil
}

func (f *fakeProvider) ChangeResourceRecordSets(ctx context.Context, zoneID string, changes []types.Change) error {
	f.batches = append(f.batches, capturedBatch{zoneID: zoneID, changes: changes})
	return nil
}

func (f *fakeProvider) mutationCount() int {
	return len(f.batches) + len(f.createdZones) + len(f.deletedZones) + len(f.associated) + len(f.disassociated)
}

type fakeRegistry struct {
	ids     map[healthcheck.Spec]string
	created int
}

func (f *fakeRegistry) FindOrCreate(ctx context.Context, spec *healthcheck.Spec) (*string, error) {
	if spec == nil {
		return nil, nil
	}
	if f.ids == nil {
		f.ids = map[healthcheck.Spec]string{}
	}
	if id, ok := f.ids[*spec]; ok {
		return aws.String(id), nil
	}
	f.created++
	id := fmt.Sprintf("hc-%d", f.created)
	f.ids[*spec] = id
	return aws.String(id), nil
}

func apexRecords(zoneName string) []types.ResourceRecordSet {
	return []types.ResourceRecordSet{
		{
			Name: aws.String(zoneName + "."),
			Type: types.RRTypeSoa,
			TTL:  aws.Int64(900),
			ResourceRecords: []types.ResourceRecord{
				{Value: aws.String("ns-1.awsdns.example. hostmaster.example. 1 7200 900 1209600 86400")},
			},
		},
		{
			Name: aws.String(zoneName + "."),
			Type: types.RRTypeNs,
			TTL:  aws.Int64(172800),
			ResourceRecords: []types.ResourceRecord{
				{Value: aws.String("ns-1.awsdns.example.")},
				{Value: aws.String("ns-2.awsdns.example.")},
			},
		},
	}
}

func existingZone(name, id string, records ...types.ResourceRecordSet) *fakeProvider {
	return &fakeProvider{
		zones: []types.HostedZone{
			{Id: aws.String(id), Name: aws.String(name + ".")},
		},
		records: map[string][]types.ResourceRecordSet{
			id: append(apexRecords(name), records...),
		},
	}
}

func newTestSyncer(p *fakeProvider, opts Options) *Syncer {
	return New(p, &fakeRegistry{}, opts, nil)
}

func TestRunCreatesMissingRecord(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1")
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "example.com",
			Records: []routefile.RecordSet{
				{Name: "www.example.com", Type: "A", TTL: aws.Int64(300), ResourceRecords: []string{"1.2.3.4"}},
			},
		},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	require.Len(t, p.batches, 1)
	batch := p.batches[0]
	assert.Equal(t, "/hostedzone/Z1", batch.zoneID)
	require.Len(t, batch.changes, 1)

	change := batch.changes[0]
	assert.Equal(t, types.ChangeActionCreate, change.Action)
	assert.Equal(t, "www.example.com", aws.ToString(change.ResourceRecordSet.Name))
	assert.Equal(t, types.RRTypeA, change.ResourceRecordSet.Type)
	assert.Equal(t, int64(300), aws.ToInt64(change.ResourceRecordSet.TTL))
	require.Len(t, change.ResourceRecordSet.ResourceRecords, 1)
	assert.Equal(t, "1.2.3.4", aws.ToString(change.ResourceRecordSet.ResourceRecords[0].Value))

	assert.Equal(t, Result{RecordsCreated: 1}, result)
}

func TestRunUpdatesChangedTTL(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1", types.ResourceRecordSet{
		Name: aws.String("www.example.com."),
		Type: types.RRTypeA,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("1.2.3.4")},
		},
	})
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "example.com",
			Records: []routefile.RecordSet{
				{Name: "www.example.com", Type: "A", TTL: aws.Int64(600), ResourceRecords: []string{"1.2.3.4"}},
			},
		},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	// one batch holding DELETE of the old record and CREATE of the new one
	require.Len(t, p.batches, 1)
	changes := p.batches[0].changes
	require.Len(t, changes, 2)

	assert.Equal(t, types.ChangeActionDelete, changes[0].Action)
	assert.Equal(t, int64(300), aws.ToInt64(changes[0].ResourceRecordSet.TTL))

	assert.Equal(t, types.ChangeActionCreate, changes[1].Action)
	assert.Equal(t, int64(600), aws.ToInt64(changes[1].ResourceRecordSet.TTL))
	assert.Equal(t, "1.2.3.4", aws.ToString(changes[1].ResourceRecordSet.ResourceRecords[0].Value))

	assert.Equal(t, Result{RecordsUpdated: 1}, result)
}

func TestRunLeavesIdenticalRecordAlone(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1", types.ResourceRecordSet{
		Name: aws.String("WWW.Example.COM."),
		Type: types.RRTypeA,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("2.2.2.2")},
			{Value: aws.String("1.1.1.1")},
		},
	})
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "example.com",
			Records: []routefile.RecordSet{
				{Name: "www.example.com", Type: "A", TTL: aws.Int64(300), ResourceRecords: []string{"1.1.1.1", "2.2.2.2"}},
			},
		},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)
	assert.Empty(t, p.batches)
	assert.False(t, result.Changed())
}

func TestRunDeletesUndefinedRecord(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1", types.ResourceRecordSet{
		Name: aws.String("old.example.com."),
		Type: types.RRTypeCname,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("www.example.com")},
		},
	})
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{{Name: "example.com"}}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	require.Len(t, p.batches, 1)
	changes := p.batches[0].changes
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeActionDelete, changes[0].Action)
	assert.Equal(t, "old.example.com.", aws.ToString(changes[0].ResourceRecordSet.Name))

	assert.Equal(t, Result{RecordsDeleted: 1}, result)
}

func TestRunNeverDeletesApexRecords(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1")
	s := newTestSyncer(p, Options{})

	// nothing is defined for the zone, yet the apex SOA/NS must survive
	rf := &routefile.Routefile{Zones: []routefile.Zone{{Name: "example.com"}}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)
	assert.Empty(t, p.batches)
	assert.False(t, result.Changed())
}

func TestRunDeletesNonApexNSRecord(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1", types.ResourceRecordSet{
		Name: aws.String("sub.example.com."),
		Type: types.RRTypeNs,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("ns-9.awsdns.example.")},
		},
	})
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{{Name: "example.com"}}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)
	require.Len(t, p.batches, 1)
	assert.Equal(t, Result{RecordsDeleted: 1}, result)
}

func TestRunDryRunMakesNoMutatingCalls(t *testing.T) {
	p := existingZone("example.com", "/hostedzone/Z1",
		types.ResourceRecordSet{
			Name: aws.String("www.example.com."),
			Type: types.RRTypeA,
			TTL:  aws.Int64(300),
			ResourceRecords: []types.ResourceRecord{
				{Value: aws.String("1.2.3.4")},
			},
		},
		types.ResourceRecordSet{
			Name: aws.String("old.example.com."),
			Type: types.RRTypeCname,
			TTL:  aws.Int64(300),
			ResourceRecords: []types.ResourceRecord{
				{Value: aws.String("www.example.com")},
			},
		},
	)
	s := newTestSyncer(p, Options{DryRun: true})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "example.com",
			Records: []routefile.RecordSet{
				{Name: "www.example.com", Type: "A", TTL: aws.Int64(600), ResourceRecords: []string{"1.2.3.4"}},
				{Name: "api.example.com", Type: "A", TTL: aws.Int64(60), ResourceRecords: []string{"5.6.7.8"}},
			},
		},
		{Name: "new.example.org"},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	assert.Zero(t, p.mutationCount())
	assert.Equal(t, Result{
		ZonesCreated:   1,
		RecordsCreated: 1,
		RecordsUpdated: 1,
		RecordsDeleted: 1,
	}, result)
	assert.True(t, result.Changed())
}

func TestRunCreatesMissingZoneAndRecords(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "example.com",
			Records: []routefile.RecordSet{
				{Name: "www.example.com", Type: "A", TTL: aws.Int64(300), ResourceRecords: []string{"1.2.3.4"}},
			},
		},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	require.Equal(t, []string{"example.com"}, p.createdZones)
	require.Len(t, p.batches, 1)
	assert.Equal(t, Result{ZonesCreated: 1, RecordsCreated: 1}, result)
}

func TestRunZoneDeleteRequiresForce(t *testing.T) {
	p := existingZone("stale.example.com", "/hostedzone/Z9", types.ResourceRecordSet{
		Name: aws.String("www.stale.example.com."),
		Type: types.RRTypeA,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("1.2.3.4")},
		},
	})
	s := newTestSyncer(p, Options{})

	result, err := s.Run(context.Background(), &routefile.Routefile{})
	require.NoError(t, err)
	assert.Zero(t, p.mutationCount())
	assert.False(t, result.Changed())
}

func TestRunZoneDeleteWithForceCascades(t *testing.T) {
	p := existingZone("stale.example.com", "/hostedzone/Z9", types.ResourceRecordSet{
		Name: aws.String("www.stale.example.com."),
		Type: types.RRTypeA,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("1.2.3.4")},
		},
	})
	s := newTestSyncer(p, Options{Force: true})

	result, err := s.Run(context.Background(), &routefile.Routefile{})
	require.NoError(t, err)

	// only the non-apex record is deleted through a change batch; SOA/NS
	// go away with the zone itself
	require.Len(t, p.batches, 1)
	require.Len(t, p.batches[0].changes, 1)
	assert.Equal(t, "www.stale.example.com.", aws.ToString(p.batches[0].changes[0].ResourceRecordSet.Name))

	assert.Equal(t, []string{"/hostedzone/Z9"}, p.deletedZones)
	assert.Equal(t, Result{ZonesDeleted: 1, RecordsDeleted: 1}, result)
}

func TestRunDryRunForceZoneDeleteMakesNoMutatingCalls(t *testing.T) {
	p := existingZone("stale.example.com", "/hostedzone/Z9", types.ResourceRecordSet{
		Name: aws.String("www.stale.example.com."),
		Type: types.RRTypeA,
		TTL:  aws.Int64(300),
		ResourceRecords: []types.ResourceRecord{
			{Value: aws.String("1.2.3.4")},
		},
	})
	s := newTestSyncer(p, Options{DryRun: true, Force: true})

	result, err := s.Run(context.Background(), &routefile.Routefile{})
	require.NoError(t, err)

	// the cascade and the zone delete are reported but never issued
	assert.Zero(t, p.mutationCount())
	assert.Empty(t, p.deletedZones)
	assert.Equal(t, Result{ZonesDeleted: 1, RecordsDeleted: 1}, result)
}

func TestRunSyncsVPCAssociations(t *testing.T) {
	p := existingZone("internal.example.com", "/hostedzone/Z5")
	p.vpcs = map[string][]types.VPC{
		"/hostedzone/Z5": {
			{VPCId: aws.String("vpc-keep"), VPCRegion: types.VPCRegionUsEast1},
			{VPCId: aws.String("vpc-drop"), VPCRegion: types.VPCRegionUsEast1},
		},
	}
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{
		{
			Name: "internal.example.com",
			VPCs: []routefile.VPC{
				{ID: "vpc-keep", Region: "us-east-1"},
				{ID: "vpc-add", Region: "eu-west-1"},
			},
		},
	}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)

	require.Len(t, p.associated, 1)
	assert.Equal(t, "vpc-add", aws.ToString(p.associated[0].VPCId))
	require.Len(t, p.disassociated, 1)
	assert.Equal(t, "vpc-drop", aws.ToString(p.disassociated[0].VPCId))
	assert.Equal(t, Result{VPCsAssociated: 1, VPCsDisassociated: 1}, result)
}

func TestRunMatchesZonesCaseAndDotInsensitively(t *testing.T) {
	p := existingZone("Example.COM", "/hostedzone/Z1")
	s := newTestSyncer(p, Options{})

	rf := &routefile.Routefile{Zones: []routefile.Zone{{Name: "example.com"}}}

	result, err := s.Run(context.Background(), rf)
	require.NoError(t, err)
	assert.Empty(t, p.createdZones)
	assert.False(t, result.Changed())
}
