// Package offline implements the durable offline mutation queue and its replayer.
//
// State-changing requests that fail while the backend is unreachable are
// recorded as (url, method) pairs in a Pebble store that survives restarts.
// After sign-in the Replayer re-issues every queued request concurrently,
// removes the ones that succeed, retains the ones that fail, and shows at most
// one toast per invocation. An empty DataDir disables the whole feature.
package offline
