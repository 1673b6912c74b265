// Package db provides the embedded schema migrations and seed catalog.
package db

import "embed"

// Migrations holds the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedProducts is the default catalog as a JSON array of products.
//
//go:embed seed/products.json
var SeedProducts []byte
