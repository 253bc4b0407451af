// Package schema binds table names to concrete tables, creating them from
// column definitions or reflecting them from pg_catalog.
//
// Existing tables are never altered: when a table is already present its
// on-disk definition is used, whatever columns were requested.
package schema
