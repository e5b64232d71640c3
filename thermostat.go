package vaillant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	getThermostatsDataPath = "/api/getthermostatsdata"
	setSystemModePath      = "/api/setsystemmode"
	setMinorModePath       = "/api/setminormode"
	syncSchedulePath       = "/api/syncschedule"
	switchSchedulePath     = "/api/switchschedule"
	homesDataPath          = "/api/homesdata"

	vaillantDeviceType = "NAVaillant"
	vaillantAppType    = "app_thermostat_vaillant"
	responseStatusOK   = "ok"

	thermostatDataCacheKey = "thermostatsdata"
	homesDataCacheKey      = "homesdata"
)

// ThermostatClient calls the thermostat subset of the Netatmo API: reading
// device state and changing system modes, minor modes, and schedules. Every
// operation obtains a valid bearer token from the TokenStore, executes
// through the retry policy, and on a 401/403 performs exactly one forced
// token refresh followed by a single retry of the whole operation.
type ThermostatClient struct {
	client *Client
	store  *TokenStore
}

// NewThermostatClient creates a new thermostat client backed by the given
// token store.
func NewThermostatClient(store *TokenStore, opts ...Option) (*ThermostatClient, error) {
	if store == nil {
		return nil, ErrNilTokenStore
	}
	return &ThermostatClient{
		client: newClient(opts...),
		store:  store,
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (c *ThermostatClient) Close() {
	c.client.close()
}

// RateLimitInfo returns the rate limit headers from the most recent
// response, or nil if none have been observed yet.
func (c *ThermostatClient) RateLimitInfo() *RateLimitInfo {
	return c.client.lastRateLimitInfo()
}

// apiResponse is the envelope every data endpoint answers with.
type apiResponse struct {
	Status string          `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// post executes one authenticated operation end to end. The refresh path is
// taken at most once per call: a second consecutive 401 surfaces as
// ErrUnauthorized rather than looping on refreshes that cannot help.
func (c *ThermostatClient) post(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	refreshed := false
	for {
		token, err := c.store.Valid(ctx)
		if err != nil {
			return nil, err
		}

		body, err := c.client.postForm(ctx, path, form, token.AccessToken)
		if err != nil {
			if !refreshed && (IsUnauthorized(err) || IsForbidden(err)) {
				refreshed = true
				if _, rerr := c.store.ForceRefresh(ctx); rerr != nil {
					return nil, rerr
				}
				continue
			}
			return nil, err
		}

		var resp apiResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("vaillant: failed to parse response: %w (body: %s)", err, truncatePreview(body))
		}
		if resp.Status != responseStatusOK {
			return nil, fmt.Errorf("%w %q (body: %s)", ErrUnexpectedResponse, resp.Status, truncatePreview(body))
		}
		return resp.Body, nil
	}
}

// thermostatsDataBody is the getthermostatsdata response body.
type thermostatsDataBody struct {
	Devices []Device `json:"devices"`
}

// homesDataBody is the homesdata response body.
type homesDataBody struct {
	Homes []Home `json:"homes"`
}

// GetThermostatsData returns all Vaillant devices with their modules.
func (c *ThermostatClient) GetThermostatsData(ctx context.Context) ([]Device, error) {
	result, err := c.client.getCached(thermostatDataCacheKey, c.thermostatDataTTL(), func() (any, error) {
		form := url.Values{}
		form.Set("device_type", vaillantDeviceType)

		raw, err := c.post(ctx, getThermostatsDataPath, form)
		if err != nil {
			return nil, err
		}

		var body thermostatsDataBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("vaillant: failed to parse thermostat data: %w (body: %s)", err, truncatePreview(raw))
		}
		return body.Devices, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Device), nil
}

// SetSystemMode changes the system mode of a device (winter, summer,
// frostguard).
func (c *ThermostatClient) SetSystemMode(ctx context.Context, deviceID, moduleID string, mode SystemMode) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	if moduleID == "" {
		return ErrEmptyModuleID
	}

	form := url.Values{}
	form.Set("device_id", deviceID)
	form.Set("module_id", moduleID)
	form.Set("system_mode", string(mode))

	if _, err := c.post(ctx, setSystemModePath, form); err != nil {
		return err
	}
	c.client.invalidateCache(thermostatDataCacheKey)
	return nil
}

// minorModeParams carries the optional SetMinorMode parameters.
type minorModeParams struct {
	endtime time.Time
	temp    *float64
}

// MinorModeOption configures optional SetMinorMode parameters.
type MinorModeOption func(*minorModeParams)

// WithSetpointEndtime sets when the minor mode ends. Required when
// activating manual or hot-water-boost mode, optional for away mode.
func WithSetpointEndtime(endtime time.Time) MinorModeOption {
	return func(p *minorModeParams) {
		p.endtime = endtime
	}
}

// WithSetpointTemp sets the target temperature. Required when activating
// manual mode; not valid for any other mode.
func WithSetpointTemp(temp float64) MinorModeOption {
	return func(p *minorModeParams) {
		p.temp = &temp
	}
}

// SetMinorMode activates or deactivates a minor mode (manual, away, hwb).
// Parameter rules follow the upstream API: activating manual requires both
// a temperature and an end time; away accepts an optional end time; hwb
// requires an end time; deactivation takes neither.
func (c *ThermostatClient) SetMinorMode(ctx context.Context, deviceID, moduleID string, mode SetpointMode, activate bool, opts ...MinorModeOption) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	if moduleID == "" {
		return ErrEmptyModuleID
	}

	var params minorModeParams
	for _, opt := range opts {
		opt(&params)
	}

	if err := validateMinorMode(mode, activate, params); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("device_id", deviceID)
	form.Set("module_id", moduleID)
	form.Set("setpoint_mode", string(mode))
	form.Set("activate", strconv.FormatBool(activate))
	if !params.endtime.IsZero() {
		form.Set("setpoint_endtime", strconv.FormatInt(params.endtime.Unix(), 10))
	}
	if params.temp != nil {
		form.Set("setpoint_temp", strconv.FormatFloat(*params.temp, 'f', -1, 64))
	}

	if _, err := c.post(ctx, setMinorModePath, form); err != nil {
		return err
	}
	c.client.invalidateCache(thermostatDataCacheKey)
	return nil
}

// validateMinorMode enforces the provider's parameter matrix before the
// request leaves the process.
func validateMinorMode(mode SetpointMode, activate bool, params minorModeParams) error {
	hasEndtime := !params.endtime.IsZero()
	hasTemp := params.temp != nil

	if !activate {
		if hasEndtime {
			return ErrSetpointEndtimeNotAllowed
		}
		if hasTemp {
			return ErrSetpointTempNotAllowed
		}
		return nil
	}

	if hasEndtime && !params.endtime.After(time.Now()) {
		return ErrSetpointEndtimeInPast
	}

	switch mode {
	case SetpointModeManual:
		if !hasTemp {
			return ErrSetpointTempRequired
		}
		if !hasEndtime {
			return ErrSetpointEndtimeRequired
		}
	case SetpointModeAway:
		if hasTemp {
			return ErrSetpointTempNotAllowed
		}
	case SetpointModeHWB:
		if hasTemp {
			return ErrSetpointTempNotAllowed
		}
		if !hasEndtime {
			return ErrSetpointEndtimeRequired
		}
	}

	return nil
}

// SyncSchedule updates a schedule's name, zones, and timetable.
func (c *ThermostatClient) SyncSchedule(ctx context.Context, deviceID, moduleID, scheduleID, name string, zones []Zone, timetable []TimeSlot) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	if moduleID == "" {
		return ErrEmptyModuleID
	}
	if scheduleID == "" {
		return ErrEmptyScheduleID
	}

	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("vaillant: failed to marshal zones: %w", err)
	}
	timetableJSON, err := json.Marshal(timetable)
	if err != nil {
		return fmt.Errorf("vaillant: failed to marshal timetable: %w", err)
	}

	form := url.Values{}
	form.Set("device_id", deviceID)
	form.Set("module_id", moduleID)
	form.Set("schedule_id", scheduleID)
	form.Set("name", name)
	form.Set("zones", string(zonesJSON))
	form.Set("timetable", string(timetableJSON))

	if _, err := c.post(ctx, syncSchedulePath, form); err != nil {
		return err
	}
	c.client.invalidateCache(thermostatDataCacheKey)
	return nil
}

// SwitchSchedule makes a different schedule the active one.
func (c *ThermostatClient) SwitchSchedule(ctx context.Context, deviceID, moduleID, scheduleID string) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	if moduleID == "" {
		return ErrEmptyModuleID
	}
	if scheduleID == "" {
		return ErrEmptyScheduleID
	}

	form := url.Values{}
	form.Set("device_id", deviceID)
	form.Set("module_id", moduleID)
	form.Set("schedule_id", scheduleID)

	if _, err := c.post(ctx, switchSchedulePath, form); err != nil {
		return err
	}
	c.client.invalidateCache(thermostatDataCacheKey)
	return nil
}

// GetHomesData returns the homes and rooms configured for the account.
func (c *ThermostatClient) GetHomesData(ctx context.Context) ([]Home, error) {
	result, err := c.client.getCached(homesDataCacheKey, c.homesDataTTL(), func() (any, error) {
		form := url.Values{}
		form.Set("app_type", vaillantAppType)
		form.Set("app_identifier", vaillantAppType)
		form.Set("sync_measurements", "true")

		raw, err := c.post(ctx, homesDataPath, form)
		if err != nil {
			return nil, err
		}

		var body homesDataBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("vaillant: failed to parse homes data: %w (body: %s)", err, truncatePreview(raw))
		}
		return body.Homes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Home), nil
}

func (c *ThermostatClient) thermostatDataTTL() time.Duration {
	if c.client.cacheConfig != nil {
		return c.client.cacheConfig.ThermostatDataTTL
	}
	return 0
}

func (c *ThermostatClient) homesDataTTL() time.Duration {
	if c.client.cacheConfig != nil {
		return c.client.cacheConfig.HomesDataTTL
	}
	return 0
}
