//go:build windows

package auth

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	logon32LogonNetwork    = 3
	logon32ProviderDefault = 0
)

var (
	advapi32       = windows.NewLazySystemDLL("advapi32.dll")
	procLogonUserW = advapi32.NewProc("LogonUserW")
)

type windowsLogon struct{}

// PlatformHostLogon returns the host logon backend for this platform.
// krb5Conf is ignored on Windows.
func PlatformHostLogon(krb5Conf string) HostLogon { return windowsLogon{} }

func (windowsLogon) Available() bool {
	return procLogonUserW.Find() == nil
}

// Logon calls LogonUserW with a network logon. The token handle is closed on
// every path.
func (windowsLogon) Logon(_ context.Context, username, domain, password string, wantGroups bool) ([]HostGroup, error) {
	userPtr, err := windows.UTF16PtrFromString(username)
	if err != nil {
		return nil, err
	}
	passPtr, err := windows.UTF16PtrFromString(password)
	if err != nil {
		return nil, err
	}
	var domainPtr *uint16
	if domain != "" {
		if domainPtr, err = windows.UTF16PtrFromString(domain); err != nil {
			return nil, err
		}
	}

	var token windows.Token
	r1, _, callErr := procLogonUserW.Call(
		uintptr(unsafe.Pointer(userPtr)),
		uintptr(unsafe.Pointer(domainPtr)),
		uintptr(unsafe.Pointer(passPtr)),
		logon32LogonNetwork,
		logon32ProviderDefault,
		uintptr(unsafe.Pointer(&token)),
	)
	if r1 == 0 {
		return nil, fmt.Errorf("LogonUserW: %w", callErr)
	}
	defer func() { _ = token.Close() }()

	if !wantGroups {
		return nil, nil
	}

	tg, err := token.GetTokenGroups()
	if err != nil {
		return nil, fmt.Errorf("GetTokenGroups: %w", err)
	}
	all := tg.AllGroups()

	return collectGroups(len(all),
		func(i int) string { return all[i].Sid.String() },
		func(i int) (string, error) {
			account, dom, _, err := all[i].Sid.LookupAccount("")
			if err != nil {
				return "", err
			}
			if dom == "" {
				return account, nil
			}
			return dom + `\` + account, nil
		},
	), nil
}
