// v0
// snapshot.go
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"nrgchamp/ctrlcore/internal/acclient"
	"nrgchamp/ctrlcore/internal/cache"
	"nrgchamp/ctrlcore/internal/devicestate"
	"nrgchamp/ctrlcore/internal/domain"
	"nrgchamp/ctrlcore/internal/homeschedule"
	"nrgchamp/ctrlcore/internal/meterclient"
	"nrgchamp/ctrlcore/internal/modewatch"
	"nrgchamp/ctrlcore/internal/pir"
	"nrgchamp/ctrlcore/internal/weatherclient"
)

const (
	meterCacheKey   = "meter"
	solarCacheKey   = "solar"
	weatherCacheKey = "weather"
)

// Shared bundles the collaborator readings that are sampled once per cycle
// and fanned out to every device's snapshot, instead of once per device
// (spec §6: meter/solar/weather Observation Caches are process-wide, not
// per-device).
type Shared struct {
	NetPowerWatt          float64
	RawSolarWatt          float64
	OutdoorTemp           float64
	AvgNext24hOutdoorTemp float64
}

// Builder assembles domain.InputSnapshot values for the Control Loop and
// the Manual/Auto Watcher, so the two never disagree about what a
// device's inputs look like. It owns the three Observation Caches (spec
// §4's device sensors, meter/solar, weather) plus the PIR Tracker, Mode
// Watcher, Device State Cache and home-occupancy resolver needed to fill
// in an InputSnapshot.
type Builder struct {
	acClients map[string]*acclient.Client
	meter     *meterclient.Client
	weather   *weatherclient.Client

	sensorCache  *cache.Cache[acclient.Sensors]
	meterCache   *cache.Cache[float64]
	solarCache   *cache.Cache[float64]
	weatherCache *cache.Cache[weatherclient.Forecast]

	states     *devicestate.Cache
	modes      *modewatch.Watcher
	pirs       *pir.Tracker
	home       *homeschedule.Resolver
	pirTimeout time.Duration

	log *slog.Logger
}

type Config struct {
	ACClients            map[string]*acclient.Client
	Meter                *meterclient.Client
	Weather              *weatherclient.Client
	DeviceSensorCacheTTL time.Duration
	MeterCacheTTL        time.Duration
	WeatherCacheTTL      time.Duration
	States               *devicestate.Cache
	Modes                *modewatch.Watcher
	Pirs                 *pir.Tracker
	Home                 *homeschedule.Resolver
	PirTimeout           time.Duration
	Logger               *slog.Logger
}

func New(c Config) *Builder {
	return &Builder{
		acClients:    c.ACClients,
		meter:        c.Meter,
		weather:      c.Weather,
		sensorCache:  cache.New[acclient.Sensors](c.DeviceSensorCacheTTL),
		meterCache:   cache.New[float64](c.MeterCacheTTL),
		solarCache:   cache.New[float64](c.MeterCacheTTL),
		weatherCache: cache.New[weatherclient.Forecast](c.WeatherCacheTTL),
		states:       c.States,
		modes:        c.Modes,
		pirs:         c.Pirs,
		home:         c.Home,
		pirTimeout:   c.PirTimeout,
		log:          c.Logger.With(slog.String("component", "snapshot")),
	}
}

// SampleShared refreshes (or reuses, within TTL) the meter/solar/weather
// readings common to every device this cycle.
func (b *Builder) SampleShared(ctx context.Context) Shared {
	var s Shared
	if b.meter != nil {
		if v, err := b.meterCache.GetOrFetch(meterCacheKey, func() (float64, error) { return b.meter.Latest(ctx) }); err == nil {
			s.NetPowerWatt = v
		} else if stale, ok := b.meterCache.Stale(meterCacheKey); ok {
			s.NetPowerWatt = stale
			b.log.Warn("meter latest fetch failed, using stale reading", "error", err)
		} else {
			b.log.Warn("meter latest fetch failed, no prior reading available", "error", err)
		}
		if v, err := b.solarCache.GetOrFetch(solarCacheKey, func() (float64, error) { return b.meter.Solar(ctx) }); err == nil {
			s.RawSolarWatt = v
		} else if stale, ok := b.solarCache.Stale(solarCacheKey); ok {
			s.RawSolarWatt = stale
		}
	}
	if b.weather != nil {
		if f, err := b.weatherCache.GetOrFetch(weatherCacheKey, func() (weatherclient.Forecast, error) { return b.weather.Get(ctx) }); err == nil {
			s.AvgNext24hOutdoorTemp = f.AvgNext24hTempCelsius
			s.OutdoorTemp = f.CurrentTempCelsius
		} else if stale, ok := b.weatherCache.Stale(weatherCacheKey); ok {
			s.AvgNext24hOutdoorTemp = stale.AvgNext24hTempCelsius
			s.OutdoorTemp = stale.CurrentTempCelsius
			b.log.Warn("weather fetch failed, using stale forecast", "error", err)
		} else {
			b.log.Warn("weather fetch failed, no prior forecast available", "error", err)
		}
	}
	return s
}

// BuildDevice samples device's own sensors (subject to its Observation
// Cache TTL) and combines them with shared into a full InputSnapshot. ok
// is false if the device has never produced a usable reading, in which
// case the caller should skip the device this cycle rather than run the
// graph against zero-valued sensor data.
func (b *Builder) BuildDevice(ctx context.Context, device string, shared Shared) (domain.InputSnapshot, bool) {
	client, ok := b.acClients[device]
	if !ok {
		b.log.Error("no AC client configured", "device", device)
		return domain.InputSnapshot{}, false
	}

	sensors, err := b.sensorCache.GetOrFetch(device, func() (acclient.Sensors, error) { return client.Sensors(ctx) })
	if err != nil {
		if stale, ok := b.sensorCache.Stale(device); ok {
			sensors = stale
			b.log.Warn("device sensors fetch failed, using stale reading", "device", device, "error", err)
		} else {
			b.log.Error("device sensors fetch failed, no prior reading available, skipping device", "device", device, "error", err)
			return domain.InputSnapshot{}, false
		}
	}

	if sensors.PirTriggered {
		b.pirs.Record(device)
	}
	minutesAgo := domain.PirNeverTriggeredSentinel
	if last, ok := b.pirs.GetLast(device); ok {
		minutesAgo = int(time.Since(last).Minutes())
	}
	recentlyTriggered := b.pirs.HasRecent(device, b.pirTimeout)

	b.modes.Update(device, sensors.IsAutoMode)

	activeState, initialized := b.states.Get(device)

	return domain.InputSnapshot{
		DeviceName:             device,
		IndoorTemp:             sensors.IndoorTempCelsius,
		IsAutoMode:             sensors.IsAutoMode,
		MinutesSinceLastAction: b.states.MinutesSinceLastAction(device),
		OutdoorTemp:            shared.OutdoorTemp,
		IsUserHome:             b.home.IsHome(time.Now()),
		NetPowerWatt:           shared.NetPowerWatt,
		RawSolarWatt:           shared.RawSolarWatt,
		AvgNext24hOutdoorTemp:  shared.AvgNext24hOutdoorTemp,
		PirState: domain.PirState{
			RecentlyTriggered: recentlyTriggered,
			MinutesAgo:        minutesAgo,
		},
		ActiveCommand:        activeState,
		ActiveCommandDefined: initialized,
	}, true
}
