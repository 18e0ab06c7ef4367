// Package core contains the sync engine's canonical domain: connections,
// sync runs, commerce and ads rows, window resolution, and the contracts the
// stores, providers, and transports implement. Lower-level adapters depend on
// this package; core must not depend on provider-specific or
// transport-specific adapters.
package core
