// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/store"
)

// Addressing is the way point operations identify their record
type Addressing string

const (
	// AddressPath addresses records as /{resource}/{id}
	AddressPath Addressing = "path"
	// AddressQuery addresses records as /{resource}?id={id}
	AddressQuery Addressing = "query"
)

// AnyResource is the resource name of a configuration entry which admits every valid resource name
const AnyResource = "*"

// Configuration holds a complete gateway configuration
type Configuration struct {
	// Prefix is an optional path prefix in front of the resource segment, e.g. "/api"
	Prefix     string                  `json:"prefix"`
	Addressing Addressing              `json:"addressing"`
	CORS       corsConfiguration       `json:"cors"`
	Resources  []resourceConfiguration `json:"resources"`
	// MaxBodyBytes limits the size of request bodies, 0 means 1 MiB
	MaxBodyBytes int64 `json:"max_body_bytes"`
}

// resourceConfiguration is one entry of the resource allow-list
type resourceConfiguration struct {
	Resource    string           `json:"resource"`
	Operations  []core.Operation `json:"operations"`
	SchemaID    string           `json:"schema_id"`
	Description string           `json:"description"`
	permitted   map[core.Operation]bool
}

type corsConfiguration struct {
	AllowOrigin   string `json:"allow_origin"`
	AllowMethods  string `json:"allow_methods"`
	AllowHeaders  string `json:"allow_headers"`
	ExposeHeaders string `json:"expose_headers"`
	MaxAge        int    `json:"max_age"`
}

const defaultMaxBodyBytes = 1 << 20

func (rc *resourceConfiguration) permits(operation core.Operation) bool {
	return rc.permitted[operation]
}

// parseConfiguration parses and validates a JSON configuration and fills in defaults
func parseConfiguration(data string) (*Configuration, error) {
	var config Configuration
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("parse error in gateway configuration: %w", err)
	}

	switch config.Addressing {
	case "":
		config.Addressing = AddressPath
	case AddressPath, AddressQuery:
	default:
		return nil, fmt.Errorf("invalid addressing '%s', must be '%s' or '%s'", config.Addressing, AddressPath, AddressQuery)
	}

	if config.Prefix != "" {
		config.Prefix = "/" + strings.Trim(config.Prefix, "/")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}

	cors := &config.CORS
	if cors.AllowOrigin == "" {
		cors.AllowOrigin = "*"
	}
	if cors.AllowMethods == "" {
		cors.AllowMethods = "POST, GET, OPTIONS, PUT, DELETE, PATCH"
	}
	if cors.AllowHeaders == "" {
		cors.AllowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Client-Info, Apikey, X-Request-Id"
	}
	if cors.ExposeHeaders == "" {
		cors.ExposeHeaders = "*"
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = 86400 // 24 hours
	}

	seen := map[string]bool{}
	for i := range config.Resources {
		rc := &config.Resources[i]
		if rc.Resource != AnyResource && !store.ValidIdentifier(rc.Resource) {
			return nil, fmt.Errorf("invalid resource name '%s'", rc.Resource)
		}
		if seen[rc.Resource] {
			return nil, fmt.Errorf("resource '%s' is configured twice", rc.Resource)
		}
		seen[rc.Resource] = true
		if len(rc.Operations) == 0 {
			rc.Operations = core.AllOperations
		}
		rc.permitted = make(map[core.Operation]bool)
		for _, operation := range rc.Operations {
			rc.permitted[operation] = true
		}
	}
	return &config, nil
}

// lookup returns the configuration of a resource. An explicit entry takes precedence
// over the "*" entry.
func (c *Configuration) lookup(resource string) (*resourceConfiguration, bool) {
	if !store.ValidIdentifier(resource) {
		return nil, false
	}
	var wildcard *resourceConfiguration
	for i := range c.Resources {
		rc := &c.Resources[i]
		if rc.Resource == resource {
			return rc, true
		}
		if rc.Resource == AnyResource {
			wildcard = rc
		}
	}
	return wildcard, wildcard != nil
}
