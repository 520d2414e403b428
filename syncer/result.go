package syncer

// Result reports what a run changed, or would have changed in dry-run mode.
type Result struct {
	ZonesCreated      int
	ZonesDeleted      int
	RecordsCreated    int
	RecordsUpdated    int
	RecordsDeleted    int
	VPCsAssociated    int
	VPCsDisassociated int
}

// Changed reports whether any mutating action was taken or simulated.
func (r Result) Changed() bool {
	return r != Result{}
}

func (r *Result) add(o Result) {
	r.ZonesCreated += o.ZonesCreated
	r.ZonesDeleted += o.ZonesDeleted
	r.RecordsCreated += o.RecordsCreated
	r.RecordsUpdated += o.RecordsUpdated
	r.RecordsDeleted += o.RecordsDeleted
	r.VPCsAssociated += o.VPCsAssociated
	r.VPCsDisassociated += o.VPCsDisassociated
}
