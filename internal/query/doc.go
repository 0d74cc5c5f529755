// ABOUTME: Package query filters, sorts, paginates, and aggregates captured records
// ABOUTME: Pure functions over model values; stores call these after row retrieval

// Package query implements the in-memory half of the search pipeline.
//
// Filters are conjunctive: every provided predicate must hold, absent
// predicates impose no constraint. Results are fully materialized, then
// sorted, then paginated; no predicate short-circuits early.
package query
