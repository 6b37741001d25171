// Package identity is the HTTP binding of the identity service boundary.
//
// [Client] implements courseauth.IdentityService over four JSON endpoints
// (login, refresh, logout, introspect). The wire types in this package are the
// contract shared with any server implementation.
//
// Every call is bounded by the client's timeout, so a hung identity service
// cannot hold the refresh flight open. Status codes map onto the courseauth
// sentinels: a rejected login is courseauth.ErrCredentialsRejected, a rejected
// refresh token is courseauth.ErrRefreshRejected, and transport failures or
// 5xx answers are courseauth.ErrIdentityUnavailable.
package identity
