// Package auth decides whether a username/password pair is valid.
//
// The package defines:
//
//   - Provider: one authentication strategy (local hashes, an LDAP
//     directory, or the host operating system's logon)
//   - Manager: selects the configured primary provider, applies the local
//     fallback policy and publishes its configuration as an immutable
//     snapshot that is swapped atomically after every credential change
//
// Authentication outcomes are booleans. Transport and protocol errors inside
// a provider are logged and reported as a failed attempt; they never reach
// the caller.
//
// Sub-packages:
//   - kerberos/: KDC password logon used by the host provider off Windows
//   - sid/: Windows SID strings for host group matching
package auth
