// Package kerberos performs password logons against a Kerberos KDC.
//
// It wraps the gokrb5 client to provide:
//   - krb5.conf loading with an environment variable override
//   - hot-reload of krb5.conf when the file changes on disk
//   - a single AS exchange per logon, used by the host authentication
//     provider on platforms without a native logon API
//
// A successful AS exchange proves the password is valid for the principal.
// It does not yield verified group membership: that requires a service
// ticket with a PAC and a keytab to decrypt it.
package kerberos
