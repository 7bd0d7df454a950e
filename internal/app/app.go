package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/cache"
	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/database"
	"github.com/Additional-Code/tabline/internal/logger"
	"github.com/Additional-Code/tabline/internal/messaging"
	"github.com/Additional-Code/tabline/internal/observability"
	repositoryactivity "github.com/Additional-Code/tabline/internal/repository/activity"
	repositorycatalog "github.com/Additional-Code/tabline/internal/repository/catalog"
	repositoryledger "github.com/Additional-Code/tabline/internal/repository/ledger"
	grpcserver "github.com/Additional-Code/tabline/internal/server/grpc"
	httpserver "github.com/Additional-Code/tabline/internal/server/http"
	serviceaudit "github.com/Additional-Code/tabline/internal/service/audit"
	servicecatalog "github.com/Additional-Code/tabline/internal/service/catalog"
	serviceorder "github.com/Additional-Code/tabline/internal/service/order"
	transporthttp "github.com/Additional-Code/tabline/internal/transport/http"
	"github.com/Additional-Code/tabline/internal/worker"
	workeractivity "github.com/Additional-Code/tabline/internal/worker/activity"
)

// Infra provides configuration, logging, storage and messaging.
var Infra = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryactivity.Module,
	repositorycatalog.Module,
	repositoryledger.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	activity.Module,
	serviceorder.Module,
	servicecatalog.Module,
	serviceaudit.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Infra,
	worker.Module,
	workeractivity.Module,
)

// Module is the default application wiring.
var Module = HTTP

// EventLogger routes Fx lifecycle events through the service logger.
var EventLogger = fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
})
