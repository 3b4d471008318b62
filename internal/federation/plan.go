package federation

// FanOutStrategy controls which shards a federated query visits.
type FanOutStrategy string

const (
	FanOutAll    FanOutStrategy = "all"
	FanOutRouted FanOutStrategy = "routed"
)

// ShardQueryPlan is the set of shards a federated query will visit and
// how that set was chosen.
type ShardQueryPlan struct {
	ShardIDs []string
	Strategy FanOutStrategy
}

// QueryKind distinguishes the seven tools for planning purposes; each
// has a different fan-out rule.
type QueryKind string

const (
	KindSearch      QueryKind = "search_symbols"
	KindReferences  QueryKind = "get_references"
	KindBlastRadius QueryKind = "get_blast_radius"
	KindDataFlow    QueryKind = "trace_data_flow"
	KindImpact      QueryKind = "change_impact"
	KindStructure   QueryKind = "get_structure"
	KindContext     QueryKind = "get_context"
)

// FederatedQueryPlanner decides which shards a query touches:
// search_symbols always fans out to every enabled shard (a name can
// exist anywhere); reference/impact queries route via the catalog's
// exported-symbol index; context routes by entry point when supplied,
// else fans out broadly like search.
type FederatedQueryPlanner struct {
	Catalog *Catalog
}

// NewFederatedQueryPlanner builds a planner bound to catalog.
func NewFederatedQueryPlanner(catalog *Catalog) *FederatedQueryPlanner {
	return &FederatedQueryPlanner{Catalog: catalog}
}

// Plan builds a ShardQueryPlan for kind, using symbolOrEntryPoint as the
// routing hint (a symbol name for reference/impact queries, an entry
// point name for get_context; ignored for search_symbols/get_structure).
func (p *FederatedQueryPlanner) Plan(kind QueryKind, symbolOrEntryPoint string) ShardQueryPlan {
	switch kind {
	case KindSearch, KindStructure:
		return ShardQueryPlan{ShardIDs: p.Catalog.EnabledShardIDs(), Strategy: FanOutAll}
	case KindReferences, KindBlastRadius, KindDataFlow, KindImpact:
		if symbolOrEntryPoint == "" {
			return ShardQueryPlan{ShardIDs: p.Catalog.EnabledShardIDs(), Strategy: FanOutAll}
		}
		return ShardQueryPlan{ShardIDs: p.Catalog.RouteSymbolQuery(symbolOrEntryPoint), Strategy: FanOutRouted}
	case KindContext:
		if symbolOrEntryPoint != "" {
			return ShardQueryPlan{ShardIDs: p.Catalog.RouteSymbolQuery(symbolOrEntryPoint), Strategy: FanOutRouted}
		}
		return ShardQueryPlan{ShardIDs: p.Catalog.EnabledShardIDs(), Strategy: FanOutAll}
	default:
		return ShardQueryPlan{ShardIDs: p.Catalog.EnabledShardIDs(), Strategy: FanOutAll}
	}
}
