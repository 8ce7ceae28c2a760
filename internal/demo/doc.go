// Package demo simulates a small world of moving entities on top of a
// replication authority.
//
// The world exists to give the replication layer realistic traffic: every
// step rewrites each entity's sync payload, edge bounces queue transient
// messages, and a churn schedule keeps creates and destroys flowing. The
// serve command drives a world on the authority goroutine; the bench
// command uses one as a deterministic load source.
//
// Entity payloads are encoded with the wire package: EntityInit carries the
// immutable kind and name, EntityState the current position.
package demo
