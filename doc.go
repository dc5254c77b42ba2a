// Package apimanager coordinates outbound JSON API calls for a client
// application:
//
//   - At most one call in flight per API; a newer call cancels the older one
//   - A shared header set (bearer token, app version) applied to every request
//   - A shared transport whose timeouts can be overridden temporarily
//   - Callback delivery classified as successful, fail, network error or other error
//   - Debug calls that deliver an injected result without any network I/O
//   - Prometheus metrics and structured logging via log/slog
//
// Typical usage:
//
//	client := apimanager.New(
//	    apimanager.WithBaseURL("https://api.example.com"),
//	    apimanager.WithAppVersion("1.4.0"),
//	    apimanager.WithLogger(slog.Default()),
//	)
//	client.SetAuth(token)
//
//	api := apimanager.Endpoint{Name: "Product", URL: "/product/list", Kind: apimanager.ContentEmpty}
//	apimanager.Call(ctx, client, api, nil, apimanager.CallbackFuncs[ProductList]{
//	    OnSuccessful: func(r *apimanager.Response[ProductList]) { render(r.Data) },
//	    OnNetworkError: func(err error) { showOffline() },
//	})
//
// Every call waits a short start delay before dispatch (DefaultStartDelay),
// so a burst of calls for the same API collapses into the last one. Calls
// for different APIs run independently.
package apimanager
