package main

import (
	datasource "rank-observer/src/data_source"
	"rank-observer/src/data_source/nse"
	"rank-observer/src/export"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"
	"rank-observer/src/network"
	"rank-observer/src/publisher"
	"rank-observer/src/server"
	"rank-observer/src/storage"
	"rank-observer/src/tracker"
)

// -----------------------------------------------------------------------------

// setupNetwork initializes the exchange session
func setupNetwork(config *models.MConfig) *network.SessionManager {
	return network.NewSessionManager(config, logger.NewLogger(config, "SessionManager"))
}

// -----------------------------------------------------------------------------

// newSourceFactory builds index sources sharing one session
func newSourceFactory(config *models.MConfig, networkManager interfaces.INetworkManager) func(models.MSourceConfig) interfaces.ISnapshotSource {
	return func(sourceCfg models.MSourceConfig) interfaces.ISnapshotSource {
		return nse.NewIndexSource(config, sourceCfg, networkManager, logger.NewLogger(config, "Source."+sourceCfg.Name))
	}
}

// -----------------------------------------------------------------------------

// setupSources registers one source per configured index universe
func setupSources(config *models.MConfig, appLogger *logger.Logger, networkManager interfaces.INetworkManager) *datasource.SourceRegistry {
	appLogger.Info("Initializing %d data sources...", len(config.DataSource.Sources))

	factory := newSourceFactory(config, networkManager)
	sources := make([]interfaces.ISnapshotSource, 0, len(config.DataSource.Sources))
	for _, srcCfg := range config.DataSource.Sources {
		sources = append(sources, factory(srcCfg))
		appLogger.Info("Added source: %s (%s, %d columns)", srcCfg.Name, srcCfg.Index, len(srcCfg.Columns))
	}

	return datasource.NewSourceRegistry(sources, appLogger)
}

// -----------------------------------------------------------------------------

func setupDisplay(config *models.MConfig) *server.DisplayServer {
	return server.NewDisplayServer(config, logger.NewLogger(config, "DisplayServer"))
}

// -----------------------------------------------------------------------------

// setupSinks opens every enabled sink. The returned func closes them.
func setupSinks(config *models.MConfig, appLogger *logger.Logger, display interfaces.IDataExchanger) (tracker.Sinks, func(), error) {
	sinks := tracker.Sinks{Display: display}
	var closers []func() error

	if config.Storage.Enabled {
		db, err := storage.NewDatabase(config, logger.NewLogger(config, "Archive"))
		if err != nil {
			return sinks, func() {}, err
		}
		if err := db.Initialize(); err != nil {
			return sinks, func() {}, err
		}
		sinks.Database = db
		closers = append(closers, db.Close)
		appLogger.Info("Archive enabled (%s)", config.Storage.DBType)
	}

	if config.Export.Enabled {
		sinks.Exporter = export.NewExporter(config.Export, logger.NewLogger(config, "Exporter"))
		appLogger.Info("CSV export enabled in %s", config.Export.Dir)
	}

	if config.Redis.Enabled {
		pub := publisher.NewRedisPublisher(config.Redis, logger.NewLogger(config, "Publisher"))
		sinks.Publisher = pub
		closers = append(closers, pub.Close)
		appLogger.Info("Redis publishing enabled on %s", config.Redis.Addr)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				appLogger.Error("Failed to close sink: %v", err)
			}
		}
	}
	return sinks, closeAll, nil
}
