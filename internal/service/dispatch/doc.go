// Package dispatch implements bulk campaign delivery: it snapshots the
// send-eligible recipients, partitions them into rate-safe batches, fans each
// batch out concurrently, and paces between batches so the downstream email
// provider's throughput caps are never tripped.
//
// Per-recipient delivery failures are collected as results, never raised as
// control flow: one bad address cannot abort the rest of a campaign.
package dispatch
