// Gray Logic Heating - demand/supply controller for a hydronic heating system.
//
// Each room (zone) turns its schedule and temperature into a claim for heat.
// The supply arbitrator aggregates the claims into a boiler flow setpoint,
// and the Modbus keep-alive mirrors that setpoint onto the boiler. All state
// is exchanged with the home automation host over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-heating/migrations"

	"github.com/nerrad567/gray-logic-heating/internal/api"
	"github.com/nerrad567/gray-logic-heating/internal/bridges/hass"
	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
	"github.com/nerrad567/gray-logic-heating/internal/heartbeat"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/history"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-heating/internal/metrics"
	"github.com/nerrad567/gray-logic-heating/internal/modbus"
	"github.com/nerrad567/gray-logic-heating/internal/notify"
	"github.com/nerrad567/gray-logic-heating/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when HEATING_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	serviceName = "graylogic-heating"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,funlen // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Heating",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// History (optional)
	var db *database.DB
	if cfg.History.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)
	}

	// MQTT is the only link to the host; without it there is nothing to do.
	topics := mqtt.NewTopics(cfg.Hass.CommandPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Dispatch loop and entity mirror
	loop := dispatch.New()
	loop.SetLogger(log.Component("loop"))
	store := entity.NewStore(loop, loop)

	outbox := hass.NewOutbox(mqttClient, byte(cfg.MQTT.QoS), 0)
	outbox.SetLogger(log.Component("outbox"))
	outbox.Start(ctx)
	defer outbox.Stop()

	bridge := hass.NewBridge(hass.Config{
		StatestreamPrefix: cfg.Hass.StatestreamPrefix,
		Topics:            topics,
		RequestTimeout:    cfg.Hass.GetRequestTimeout(),
	}, mqttClient, outbox, store, loop)
	bridge.SetLogger(log.Component("hass"))
	store.SetWriter(bridge)

	notifier := notify.New(outbox, topics, notify.Config{
		PerMinute: cfg.Notify.RatePerMinute,
		Burst:     cfg.Notify.Burst,
	})
	notifier.SetLogger(log.Component("notify"))

	// Observers
	collector := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	board := api.NewBoard(hub)
	hub.SetReplay(board.Replay)

	zoneObs := heating.ZoneObservers{board, collector}
	supplyObs := heating.SupplyObservers{board, collector}

	var historyRepo history.Repository
	if db != nil {
		historyRepo = history.NewSQLiteRepository(db.DB)
		recorder := history.NewRecorder(historyRepo, history.RecorderConfig{
			Retention: time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
		})
		recorder.SetLogger(log.Component("history"))
		recorderDone := make(chan struct{})
		go func() {
			recorder.Run(ctx)
			close(recorderDone)
		}()
		// Flush queued entries before the database closes.
		defer func() {
			recorder.Stop()
			<-recorderDone
		}()
		zoneObs = append(zoneObs, recorder)
		supplyObs = append(supplyObs, recorder)
	}
	if influxClient != nil {
		tele := telemetry.NewRecorder(influxClient)
		zoneObs = append(zoneObs, tele)
		supplyObs = append(supplyObs, tele)
	}

	// Controller components
	zones := buildZones(cfg, store, loop, bridge, zoneObs, log)
	arbitrator := heating.NewArbitrator(supplyConfig(cfg), store, loop)
	arbitrator.SetLogger(log.Component("supply"))
	arbitrator.SetNotifier(notifier)
	arbitrator.SetObserver(supplyObs)

	var keepAlive *modbus.KeepAlive
	var linkWatch *modbus.LinkWatch
	if cfg.Modbus.Enabled {
		keepAlive = modbus.NewKeepAlive(keepAliveConfig(cfg), store, loop)
		keepAlive.SetLogger(log.Component("keepalive"))
		keepAlive.SetNotifier(notifier)
		keepAlive.SetOnStatus(func(s modbus.Status) {
			collector.KeepAlive(s.Writes, s.Resets)
			board.KeepAlive(s)
		})
		if cfg.Modbus.LinkStatusSensor != "" {
			linkWatch = modbus.NewLinkWatch(cfg.Modbus.LinkStatusSensor, cfg.Notify.Target, store, notifier)
			linkWatch.SetLogger(log.Component("linkwatch"))
		}
	}

	var pulse *heartbeat.Pulse
	if cfg.Heartbeat.Enabled {
		pulse = heartbeat.NewPulse(cfg.Heartbeat.Entity, cfg.Heartbeat.GetInterval(), store, loop)
		pulse.SetLogger(log.Component("pulse"))
	}

	// Subscribe before the components start so the retained state stream
	// is already flowing into the mirror.
	if err := bridge.Start(); err != nil {
		return fmt.Errorf("starting hass bridge: %w", err)
	}

	loop.Post(func() {
		for _, z := range zones {
			z.Start()
		}
		arbitrator.Start()
		if keepAlive != nil {
			keepAlive.Start()
		}
		if linkWatch != nil {
			linkWatch.Start()
		}
		if pulse != nil {
			pulse.Start()
		}
	})

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()
	log.Info("controller started", "zones", len(zones), "modbus", cfg.Modbus.Enabled)

	// Health reporting
	reporter := heartbeat.NewReporter(heartbeat.ReporterConfig{
		Service:   serviceName,
		Version:   version,
		Topic:     topics.Health(),
		Publisher: mqttClient,
		Details:   func() map[string]any { return healthDetails(board) },
	})
	reporter.SetLogger(log.Component("health"))
	reporter.Register("mqtt", mqttClient)
	if db != nil {
		reporter.Register("database", db)
	}
	if influxClient != nil {
		reporter.Register("influxdb", influxClient)
	}
	reporter.Start(ctx)
	defer reporter.Stop()

	// API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Board:       board,
		Version:     version,
		Health:      reporter,
		Events:      store,
		Metrics:     collector,
		MQTT:        mqttClient,
		Bridge:      bridge,
		ExternalHub: hub,
	}
	if db != nil {
		deps.History = historyRepo
		deps.DB = db
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	go hub.Run(ctx)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	<-loopErr

	log.Info("Gray Logic Heating stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEATING_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEATING_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// tunables converts the configured fallbacks.
func tunables(d config.HeatingDefaults) heating.Tunables {
	return heating.Tunables{
		BaseTemp:        d.BaseTemp,
		HeatTemp:        d.HeatTemp,
		OffTemp:         d.OffTemp,
		Delta:           d.Delta,
		Margin:          d.Margin,
		BoostFactor:     d.BoostFactor,
		BoostThreshold:  d.BoostThreshold,
		BaselineZeroDeg: d.BaselineZeroDeg,
		BaselineAdjust:  d.BaselineAdjust,
		MaxFlowTemp:     d.MaxFlowTemp,
		ClaimDuration:   d.ClaimDuration,
		MultiRoomOffset: d.MultiRoomOffset,
	}
}

// zoneConfigs maps the configured zones onto engine configs.
func zoneConfigs(cfg *config.Config) []heating.ZoneConfig {
	out := make([]heating.ZoneConfig, 0, len(cfg.Heating.Zones))
	for _, zc := range cfg.Heating.Zones {
		z := heating.ZoneConfig{
			Location:             zc.Location,
			TempSensor:           zc.TempSensor,
			Tunables:             tunables(cfg.Heating.Defaults),
			ScheduleDebounce:     config.Millis(cfg.Heating.Debounce.Schedule),
			AttributeDebounce:    config.Millis(cfg.Heating.Debounce.Attribute),
			FirstEvaluationDelay: cfg.Heating.GetFirstEvaluationDelay(),
			TimeZone:             cfg.Location(),
		}
		if zc.Solar != nil {
			z.Solar = &heating.SolarConfig{
				Sensor:     zc.Solar.Sensor,
				Activation: zc.Solar.ActivationTemp,
				Peak:       zc.Solar.PeakTemp,
			}
		}
		out = append(out, z)
	}
	return out
}

func buildZones(cfg *config.Config, port entity.Port, sched dispatch.Scheduler, rules heating.RuleSource, obs heating.ZoneObserver, log *logging.Logger) []*heating.Zone {
	var zones []*heating.Zone
	for _, zc := range zoneConfigs(cfg) {
		z := heating.NewZone(zc, port, sched)
		z.SetLogger(log.Component("zone").With("zone", zc.Location))
		z.SetObserver(obs)
		z.SetRuleSource(rules)
		zones = append(zones, z)
	}
	return zones
}

// supplyConfig maps the configuration onto the arbitrator's.
func supplyConfig(cfg *config.Config) heating.SupplyConfig {
	sc := heating.SupplyConfig{
		ValveSensors:         make(map[string]string),
		OutdoorSensors:       cfg.Heating.OutdoorSensors,
		Tunables:             tunables(cfg.Heating.Defaults),
		RoundingStep:         cfg.Heating.FlowRoundingStep,
		PartyValveThreshold:  cfg.Heating.PartyValveThreshold,
		Debounce:             config.Millis(cfg.Heating.Debounce.Supply),
		StartupRetryInterval: cfg.Heating.GetStartupRetryInterval(),
		NotifyTarget:         cfg.Notify.Target,
	}
	for _, zc := range cfg.Heating.Zones {
		sc.Zones = append(sc.Zones, zc.Location)
		if zc.ValveSensor != "" {
			sc.ValveSensors[zc.Location] = zc.ValveSensor
		}
	}
	return sc
}

// keepAliveConfig maps the configuration onto the keep-alive's.
func keepAliveConfig(cfg *config.Config) modbus.Config {
	return modbus.Config{
		FlowEntity:           cfg.Modbus.FlowEntity,
		PumpEnableEntity:     cfg.Modbus.PumpEnableEntity,
		PumpEnableOption:     cfg.Modbus.PumpEnableOption,
		OperatingModeEntity:  cfg.Modbus.OperatingModeEntity,
		AutomaticOption:      cfg.Modbus.AutomaticOption,
		KeepAliveInterval:    cfg.Modbus.GetKeepAliveInterval(),
		IdleGrace:            cfg.Modbus.GetIdleGrace(),
		StartupRetryInterval: cfg.Heating.GetStartupRetryInterval(),
		NotifyTarget:         cfg.Notify.Target,
	}
}

// healthDetails summarises supply state for the health document.
func healthDetails(board *api.Board) map[string]any {
	supply, ok := board.Supply()
	if !ok {
		return map[string]any{"supply_state": heating.StartupPending.String()}
	}
	return map[string]any{
		"supply_state": supply.State.String(),
		"mode":         supply.Mode,
		"flow_target":  supply.FlowTarget,
		"active_zones": len(supply.ActiveZones),
	}
}
