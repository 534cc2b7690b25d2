//go:build !windows

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/auth/kerberos"
)

// kerberosLogon logs on to the domain's KDC. It is available when a
// krb5.conf can be loaded.
type kerberosLogon struct {
	path   string
	once   sync.Once
	client *kerberos.Client
}

var errHostUnavailable = errors.New("auth: host logon unavailable")

// kerberosBackends caches one backend per krb5.conf path so that provider
// rebuilds share the loaded configuration and its reload poller.
var kerberosBackends sync.Map

// PlatformHostLogon returns the host logon backend for this platform.
// krb5Conf names the Kerberos configuration; empty selects the default.
func PlatformHostLogon(krb5Conf string) HostLogon {
	v, _ := kerberosBackends.LoadOrStore(krb5Conf, &kerberosLogon{path: krb5Conf})
	return v.(*kerberosLogon)
}

func (k *kerberosLogon) load() *kerberos.Client {
	k.once.Do(func() {
		c, err := kerberos.NewClient(k.path)
		if err != nil {
			logger.Debug("Host authentication unavailable: no usable krb5.conf", logger.Err(err))
			return
		}
		k.client = c
	})
	return k.client
}

func (k *kerberosLogon) Available() bool {
	return k.load() != nil
}

// Logon performs an AS exchange. Group enumeration is not supported: a
// password-only exchange yields no verified PAC, so a group-restricted
// configuration fails closed.
func (k *kerberosLogon) Logon(_ context.Context, username, domain, password string, wantGroups bool) ([]HostGroup, error) {
	c := k.load()
	if c == nil {
		return nil, errHostUnavailable
	}
	if wantGroups {
		return nil, ErrGroupsUnsupported
	}
	if i := strings.LastIndexByte(username, '@'); i >= 0 {
		username, domain = username[:i], username[i+1:]
	}
	realm, err := c.Realm(domain)
	if err != nil {
		return nil, err
	}
	return nil, c.Login(username, realm, password)
}
