package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/relplan/pkg/adapter"
)

// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/relplan/pkg/adapters/postgres"
func init() {
	adapter.Register(Name, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
