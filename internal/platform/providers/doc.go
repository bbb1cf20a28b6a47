// Package providers contains the clients for the external services the job
// handlers depend on: the email delivery provider, the certificate render
// service and the video transcoding service. Each concern has an HTTP
// client for production and a logging stand-in for development, selected by
// configuration.
package providers
