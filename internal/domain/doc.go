// Package domain defines the identity types and contracts shared across
// nostrid. It holds plain values (keys, settings, pre-events) and
// interfaces only; behaviour lives in crypto, services and store.
package domain
