// Package testutil provides shared test utilities for turnlink.
//
// # Fixtures
//
// The fixtures.go file provides sample routes and fixes:
//
//   - TwoStepRoute() - two short steps ending at (0,0) and (0,0.001)
//   - CityRoute() - a four-step route with left, right and u-turn steps
//   - NearPoint(p, meters, bearing) - a fix a given distance from p
//   - WalkFixes(line, spacing) - fixes every spacing meters along a line
//   - SampleRouteGeoJSON - CityRoute's first two steps as a route file
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupTestDir(t, configYAML) - temp dir with .turnlink/config.yaml
//   - WriteTestFile(t, base, path, content) - writes a file in test dir
//   - MustMarshalJSON(t, v) / MustUnmarshalJSON(t, data, v)
//
// # Timeouts and waiting
//
// The timeout.go and assertions.go files provide context helpers and
// polling assertions for asynchronous components such as the bridge:
//
//   - ContextWithTimeout(t, d), NetworkContext(t)
//   - WaitFor(t, timeout, cond, msg) - polls until cond is true
//   - Never(t, window, cond, msg) - asserts cond stays false
//   - AssertRouteSteps(t, r, instructions...) - step instruction order
package testutil
