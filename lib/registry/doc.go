// Package registry provides a small generic registry of tagged variants.
//
// The agent selects its store backend, snapshot codec and peer provider from
// configuration discriminators. These choices are modeled as registries that
// are populated at startup and resolved once, rather than as per-call dynamic
// dispatch: after wiring, components hold their resolved collaborators
// directly.
package registry
