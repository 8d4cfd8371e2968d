// Package app provides the application service layer.
//
// Orchestrates use cases: sign-in/sign-out, bookmark and survey mutations with
// optimistic local apply and offline queueing, and the post-sign-in replay of
// queued mutations. Sits between HTTP handlers and the adapters. Depends on
// domain interfaces, not concrete implementations.
package app
