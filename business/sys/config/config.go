// Package config holds the application settings shared by the core
// packages. A single App value is constructed at startup and passed by
// pointer to every component that needs it.
package config

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/loans/foundation/validate"
)

// App represents the identity of this application with the notification
// service and where its public assets live.
type App struct {
	ProjectID      string `json:"project_id" validate:"required"`
	AppDomain      string `json:"app_domain" validate:"required,hostname_port|hostname_rfc1123"`
	AppOrigin      string `json:"app_origin" validate:"required,url"`
	ExplorerURL    string `json:"explorer_url" validate:"required,url"`
	ChainNamespace string `json:"chain_namespace" validate:"required"`
	ChainID        string `json:"chain_id" validate:"required,numeric"`
}

// Validate checks the settings are usable. The notification service fails
// opaquely when the project id or domain is missing, so this is checked
// before anything is constructed.
func (a *App) Validate() error {
	if err := validate.Check(a); err != nil {
		return fmt.Errorf("validating app config: %w", err)
	}
	return nil
}

// AssetURL returns the public url for the named asset.
func (a *App) AssetURL(name string) string {
	return strings.TrimSuffix(a.AppOrigin, "/") + "/assets/" + strings.TrimPrefix(name, "/")
}

// BlockURL returns the block explorer url for the block number.
func (a *App) BlockURL(number string) string {
	return strings.TrimSuffix(a.ExplorerURL, "/") + "/block/" + number
}
