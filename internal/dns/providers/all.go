// Package providers imports all destination list provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns/memory"
	_ "github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns/umbrella"
)
