// Package credentials persists per-user Google OAuth credential records.
//
// One record exists per user. Records are created by the external consent
// flow (the link command exchanges the authorization code) and updated in
// place whenever the transport rotates tokens during use. The aggregation
// core reads records through the narrow Store interface and writes back only
// the fields a rotation changed.
package credentials
