// Package domain defines the core domain types and interfaces.
//
// Contains the schedule and user-data model types, the offline mutation value
// type, and cross-cutting interfaces (Requester, Notifier, stores). No
// implementation code - just contracts. Keeping interfaces here prevents
// circular imports between the app layer and the adapters.
package domain
