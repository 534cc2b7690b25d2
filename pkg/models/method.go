package models

// Method names an authentication provider.
type Method string

const (
	// MethodLocal authenticates against hashes stored in the documents.
	MethodLocal Method = "local"

	// MethodDirectory authenticates against an LDAP-compatible directory.
	MethodDirectory Method = "directory"

	// MethodHost authenticates against the operating system logon facility.
	MethodHost Method = "host"
)

// legacyMethodAliases maps method spellings found in older documents.
var legacyMethodAliases = map[string]Method{
	"ldap":    MethodDirectory,
	"windows": MethodHost,
}

// AllMethods lists every known method in display order.
func AllMethods() []Method {
	return []Method{MethodLocal, MethodDirectory, MethodHost}
}

// IsValid checks if the method names a known provider.
func (m Method) IsValid() bool {
	return m == MethodLocal || m == MethodDirectory || m == MethodHost
}

// Normalize resolves aliases and defaults an empty method to MethodLocal.
// Unknown values are returned unchanged so validation can reject them.
func (m Method) Normalize() Method {
	if m == "" {
		return MethodLocal
	}
	if alias, ok := legacyMethodAliases[string(m)]; ok {
		return alias
	}
	return m
}

func (m Method) String() string {
	return string(m)
}
