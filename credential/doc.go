// Package credential implements the rotation policy applied around a single
// invocation attempt: fetch a usable key, try, record and rotate on a rate
// limit, retry exactly once. Key lifecycle and storage belong entirely to
// the external Resolver; this package only reads keys and reports limit
// hits.
package credential
