// Package types defines the shared data model for hybrid retrieval:
// document references, scored candidates, combined results, retrieval
// configuration, and the error taxonomy surfaced by Search.
//
// All query-time values (ScoredCandidate, NormalizedCandidate,
// CombinedResult) are created fresh per query and discarded once the
// result list is returned. Only DocumentRef outlives a query, and it is
// immutable once indexed.
package types
