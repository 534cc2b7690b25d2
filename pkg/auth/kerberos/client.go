package kerberos

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"

	"github.com/marmos91/warden/internal/logger"
)

// ErrNoRealm is returned when neither the caller nor krb5.conf names a realm.
var ErrNoRealm = errors.New("kerberos: no realm configured")

// confPollInterval is the interval at which krb5.conf is polled for changes.
const confPollInterval = 60 * time.Second

// Client performs password logons using the realms described by krb5.conf.
//
// The configuration is reloaded when the file's modification time changes.
// Polling is used instead of fsnotify because krb5.conf is usually managed
// by configuration tools that replace it atomically.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	path string

	mu      sync.RWMutex
	conf    *krb5config.Config
	lastMod time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewClient loads krb5.conf from configPath (or the environment override or
// the default path) and starts polling it for changes.
func NewClient(configPath string) (*Client, error) {
	path := resolveKrb5ConfPath(configPath)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("krb5.conf not accessible: %w", err)
	}
	conf, err := loadKrb5Conf(path)
	if err != nil {
		return nil, fmt.Errorf("load krb5.conf %s: %w", path, err)
	}

	c := &Client{
		path:    path,
		conf:    conf,
		lastMod: info.ModTime(),
		stopCh:  make(chan struct{}),
	}
	go c.pollLoop()

	logger.Debug("Kerberos configuration loaded", logger.KeyPath, path,
		"default_realm", conf.LibDefaults.DefaultRealm)
	return c, nil
}

// Path returns the krb5.conf path in use.
func (c *Client) Path() string {
	return c.path
}

// Realm returns the realm to use for domain. An empty domain selects the
// default realm from krb5.conf.
func (c *Client) Realm(domain string) (string, error) {
	if domain != "" {
		return strings.ToUpper(domain), nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conf.LibDefaults.DefaultRealm == "" {
		return "", ErrNoRealm
	}
	return c.conf.LibDefaults.DefaultRealm, nil
}

// Login performs an AS exchange for username@realm with password.
// A nil error means the KDC accepted the password.
func (c *Client) Login(username, realm, password string) error {
	c.mu.RLock()
	conf := c.conf
	c.mu.RUnlock()

	cl := client.NewWithPassword(username, realm, password, conf, client.DisablePAFXFAST(true))
	defer cl.Destroy()

	if err := cl.Login(); err != nil {
		return fmt.Errorf("kerberos login for %s@%s: %w", username, realm, err)
	}
	return nil
}

// Close stops the polling goroutine. Safe to call multiple times.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *Client) pollLoop() {
	ticker := time.NewTicker(confPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkAndReload()
		case <-c.stopCh:
			return
		}
	}
}

// checkAndReload reloads krb5.conf if its modification time changed.
// On a parse failure the previous configuration stays active.
func (c *Client) checkAndReload() {
	info, err := os.Stat(c.path)
	if err != nil {
		logger.Warn("krb5.conf stat failed", logger.KeyPath, c.path, logger.Err(err))
		return
	}

	c.mu.RLock()
	unchanged := info.ModTime().Equal(c.lastMod)
	c.mu.RUnlock()
	if unchanged {
		return
	}

	conf, err := loadKrb5Conf(c.path)
	if err != nil {
		logger.Error("krb5.conf reload failed", logger.KeyPath, c.path, logger.Err(err))
		return
	}

	c.mu.Lock()
	c.conf = conf
	c.lastMod = info.ModTime()
	c.mu.Unlock()

	logger.Info("krb5.conf reloaded", logger.KeyPath, c.path)
}
