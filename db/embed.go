// Package db embeds the schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for the catalog, warehouse, inventory, and order
// tables. Statements are idempotent so the server can apply them on boot.
//
//go:embed migrations/001_schema.sql
var Schema string
