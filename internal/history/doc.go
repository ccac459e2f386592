// Package history records export runs in SQLite.
//
// Each run gets a UUID when it begins and is updated with frame progress and
// a terminal status. Runs still marked running when the store is opened
// belong to a process that died mid-export; MarkInterrupted settles them.
//
// Schema changes bump schemaVersion; users delete history.db to adopt them.
package history
