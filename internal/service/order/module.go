package order

import "go.uber.org/fx"

// Module provides the order, payment and table services to Fx.
var Module = fx.Provide(
	NewCoreService,
	NewPaymentService,
	NewTableService,
)
