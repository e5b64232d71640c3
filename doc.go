// Package vaillant provides a Go client library for the Vaillant-flavoured
// Netatmo thermostat API.
//
// The library covers the OAuth password-grant flow, transparent token
// refresh, retry with exponential backoff for transient failures, and a
// typed error taxonomy, so applications can read thermostat state and
// change modes and schedules without hand-rolling HTTP plumbing.
//
// # Authentication
//
// Obtain an initial token with the password grant, then hand it to a
// TokenStore which keeps it fresh for the lifetime of the process:
//
//	auth, err := vaillant.NewAuthClient(clientID, clientSecret, vaillant.DefaultScope)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	token, err := auth.FetchToken(ctx, username, password, userPrefix, appVersion)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	file := vaillant.NewFileTokenStore("/path/to/token.json")
//	store := vaillant.NewTokenStore(auth, token,
//	    vaillant.WithUpdateCallback(vaillant.PersistUpdates(file)),
//	)
//
// The update callback runs on every successful refresh before the
// refreshed token is used, so persisted state never lags the in-memory
// token. A previously persisted token can be restored with
// DeserializeToken or FileTokenStore.Load and passed to NewTokenStore
// directly, skipping the password grant.
//
// # Basic Usage
//
// Read thermostat data and change modes:
//
//	client, err := vaillant.NewThermostatClient(store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	devices, err := client.GetThermostatsData(ctx)
//	for _, device := range devices {
//	    fmt.Printf("%s: %s\n", device.StationName, device.SystemMode)
//	}
//
//	err = client.SetSystemMode(ctx, deviceID, moduleID, vaillant.SystemModeWinter)
//
//	err = client.SetMinorMode(ctx, deviceID, moduleID, vaillant.SetpointModeManual, true,
//	    vaillant.WithSetpointTemp(21.5),
//	    vaillant.WithSetpointEndtime(time.Now().Add(2*time.Hour)),
//	)
//
// # Token Refresh
//
// Every operation attaches a valid bearer token before the request goes
// out. When the API rejects a call with 401 or 403, the store performs a
// single-flight refresh (concurrent callers share one refresh request) and
// the call is retried exactly once; a second rejection surfaces as
// ErrUnauthorized.
//
// # Retry
//
// Transient failures (429, 5xx, timeouts, connection errors) are retried
// with exponential backoff and jitter, three attempts by default:
//
//	client, err := vaillant.NewThermostatClient(store,
//	    vaillant.WithRetry(&vaillant.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second}),
//	)
//
// Auth and validation errors are never retried.
//
// # Error Handling
//
// Every failure is one of the package's typed errors:
//
//	devices, err := client.GetThermostatsData(ctx)
//	if err != nil {
//	    switch {
//	    case vaillant.IsInvalidCredentials(err):
//	        // Password or refresh grant rejected; re-authenticate
//	    case vaillant.IsUnauthorized(err):
//	        // Token rejected even after a refresh
//	    case vaillant.IsRateLimited(err):
//	        // Too many requests
//	    }
//	}
//
// For more information, see https://dev.netatmo.com/apidocumentation/
package vaillant
