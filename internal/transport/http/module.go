package http

import (
	"go.uber.org/fx"

	activitytransport "github.com/Additional-Code/tabline/internal/transport/http/activity"
	catalogtransport "github.com/Additional-Code/tabline/internal/transport/http/catalog"
	ordertransport "github.com/Additional-Code/tabline/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	catalogtransport.Module,
	ordertransport.Module,
	activitytransport.Module,
)
