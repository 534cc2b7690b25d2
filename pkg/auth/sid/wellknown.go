package sid

// Well-known SIDs that commonly appear in an administrator's logon token.
var (
	Everyone            = MustParse("S-1-1-0")
	AuthenticatedUsers  = MustParse("S-1-5-11")
	LocalSystem         = MustParse("S-1-5-18")
	Administrators      = MustParse("S-1-5-32-544")
	Users               = MustParse("S-1-5-32-545")
	PowerUsers          = MustParse("S-1-5-32-547")
	RemoteDesktopUsers  = MustParse("S-1-5-32-555")
	NetworkLogon        = MustParse("S-1-5-2")
	InteractiveLogon    = MustParse("S-1-5-4")
	ThisOrganization    = MustParse("S-1-5-15")
	LocalAccount        = MustParse("S-1-5-113")
	LocalAdminAccount   = MustParse("S-1-5-114")
	MandatoryMediumIL   = MustParse("S-1-16-8192")
	MandatoryHighIL     = MustParse("S-1-16-12288")
	NTLMAuthentication  = MustParse("S-1-5-64-10")
	BuiltinGuests       = MustParse("S-1-5-32-546")
	BuiltinBackupOps    = MustParse("S-1-5-32-551")
	BuiltinRemoteMgmt   = MustParse("S-1-5-32-580")
	BuiltinEventLogRead = MustParse("S-1-5-32-573")
)

var wellKnownNames = map[string]string{
	Everyone.String():            "Everyone",
	AuthenticatedUsers.String():  `NT AUTHORITY\Authenticated Users`,
	LocalSystem.String():         `NT AUTHORITY\SYSTEM`,
	Administrators.String():      `BUILTIN\Administrators`,
	Users.String():               `BUILTIN\Users`,
	PowerUsers.String():          `BUILTIN\Power Users`,
	RemoteDesktopUsers.String():  `BUILTIN\Remote Desktop Users`,
	NetworkLogon.String():        `NT AUTHORITY\NETWORK`,
	InteractiveLogon.String():    `NT AUTHORITY\INTERACTIVE`,
	ThisOrganization.String():    `NT AUTHORITY\This Organization`,
	LocalAccount.String():        `NT AUTHORITY\Local account`,
	LocalAdminAccount.String():   `NT AUTHORITY\Local account and member of Administrators group`,
	MandatoryMediumIL.String():   `Mandatory Label\Medium Mandatory Level`,
	MandatoryHighIL.String():     `Mandatory Label\High Mandatory Level`,
	NTLMAuthentication.String():  `NT AUTHORITY\NTLM Authentication`,
	BuiltinGuests.String():       `BUILTIN\Guests`,
	BuiltinBackupOps.String():    `BUILTIN\Backup Operators`,
	BuiltinRemoteMgmt.String():   `BUILTIN\Remote Management Users`,
	BuiltinEventLogRead.String(): `BUILTIN\Event Log Readers`,
}

// WellKnownName returns the display name for a well-known SID string.
func WellKnownName(s string) (string, bool) {
	v, err := Parse(s)
	if err != nil {
		return "", false
	}
	name, ok := wellKnownNames[v.String()]
	return name, ok
}
