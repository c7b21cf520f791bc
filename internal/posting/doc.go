// Package posting defines the domain model shared by the ingestion pipeline:
// postings and their composite identity, the source shapes a listing page can
// take, tracking records, subscribers, and the interfaces the pipeline depends
// on. It also hosts the pure normalization steps (required-field filtering,
// deduplication, and date ordering) since they operate on nothing but postings.
package posting
