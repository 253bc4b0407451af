// Package marker records completed runs in a marker table.
//
// The marker table has one row per update id:
//
//	update_id    VARCHAR(128) PRIMARY KEY
//	target_table VARCHAR(128)
//	inserted     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
//
// A row's existence is the only meaning of "complete". The primary key
// arbitrates concurrent writers; no process-local locking is involved.
package marker
