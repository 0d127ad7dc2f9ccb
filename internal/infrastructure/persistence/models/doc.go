// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
//   - base.go: BaseModel and AggregateModel shared by every table
//   - declaration.go: declarations, participants and payments
//
// Repositories convert with ToDomain / FromDomain and write status changes
// through MutableColumns so code and ownership are never rewritten.
package models
