package controllers

import (
	"context"
	"sync"

	configv1 "github.com/firestoned/bindy/internal/config/v1"
	"github.com/firestoned/bindy/internal/nameserver"
)

func testConfig() configv1.Config {
	config, err := configv1.Load("")
	if err != nil {
		panic(err)
	}
	return config
}

//-------------------------------------------------------------------------------------------------
// FAKE NAMESERVERS
//-------------------------------------------------------------------------------------------------

// fakeServers is an in-memory stand-in for the fleet of BIND9 management APIs. It records
// the configuration pushed to every endpoint and can be set up to fail all operations.
type fakeServers struct {
	mu      sync.Mutex
	zones   map[string]map[string]nameserver.Zone
	records map[string]map[string][]nameserver.Record
	fail    error
}

func newFakeServers() *fakeServers {
	return &fakeServers{
		zones:   make(map[string]map[string]nameserver.Zone),
		records: make(map[string]map[string][]nameserver.Record),
	}
}

func (f *fakeServers) ClientFor(endpoint, key string) (nameserver.Client, error) {
	return &fakeServerClient{servers: f, endpoint: endpoint}, nil
}

func (f *fakeServers) zoneNames(endpoint string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.zones[endpoint]))
	for name := range f.zones[endpoint] {
		names = append(names, name)
	}
	return names
}

func (f *fakeServers) recordsOf(endpoint, zone string) []nameserver.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[endpoint][zone]
}

type fakeServerClient struct {
	servers  *fakeServers
	endpoint string
}

func (c *fakeServerClient) EnsureZone(ctx context.Context, zone nameserver.Zone) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.fail != nil {
		return c.servers.fail
	}
	if c.servers.zones[c.endpoint] == nil {
		c.servers.zones[c.endpoint] = make(map[string]nameserver.Zone)
	}
	c.servers.zones[c.endpoint][zone.Name] = zone
	return nil
}

func (c *fakeServerClient) DeleteZone(ctx context.Context, name string) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.fail != nil {
		return c.servers.fail
	}
	delete(c.servers.zones[c.endpoint], name)
	delete(c.servers.records[c.endpoint], name)
	return nil
}

func (c *fakeServerClient) EnsureRecord(
	ctx context.Context, zone string, record nameserver.Record,
) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.fail != nil {
		return c.servers.fail
	}
	if c.servers.records[c.endpoint] == nil {
		c.servers.records[c.endpoint] = make(map[string][]nameserver.Record)
	}
	records := c.servers.records[c.endpoint][zone]
	for i := range records {
		if records[i].Name == record.Name && records[i].Type == record.Type {
			records[i] = record
			return nil
		}
	}
	c.servers.records[c.endpoint][zone] = append(records, record)
	return nil
}

func (c *fakeServerClient) DeleteRecord(
	ctx context.Context, zone string, record nameserver.Record,
) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.fail != nil {
		return c.servers.fail
	}
	records := c.servers.records[c.endpoint][zone]
	for i := range records {
		if records[i].Name == record.Name && records[i].Type == record.Type {
			c.servers.records[c.endpoint][zone] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}
