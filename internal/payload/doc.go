// Package payload provides the constrained value types carried in event
// payloads and their canonical JSON encoding.
//
// Payload values form a sealed set: Null, String, Int, Bool, Array, Object.
// There is no float type; numbers are always int64 so that a payload read
// back from the log re-serializes to the exact same bytes.
//
// Canonical encoding follows RFC 8785:
//   - object keys sorted by UTF-16 code units
//   - no HTML escaping, no insignificant whitespace
//   - strings NFC normalized at the serialization boundary
//
// This package imports nothing internal.
package payload
