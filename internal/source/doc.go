// Package source provides position fix producers for the navigator: a
// simulated walk along a route, a replay of a recorded track, and an
// adapter for a caller-owned channel.
//
// Every source satisfies the same contract: Positions starts a fresh
// stream and the returned channel is closed when the stream ends or the
// context is cancelled.
package source
