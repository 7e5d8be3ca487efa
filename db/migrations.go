package db

import (
	"database/sql"
	"log"
)

// SQL for federation tables beyond the base actors table
const (
	// Follow graph
	sqlCreateFollowingTable = `CREATE TABLE IF NOT EXISTS actor_following (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		target_actor_id TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		cdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, target_actor_id)
	)`

	sqlCreateFollowingIndices = `
		CREATE INDEX IF NOT EXISTS idx_actor_following_actor_id ON actor_following(actor_id);
		CREATE INDEX IF NOT EXISTS idx_actor_following_target_actor_id ON actor_following(target_actor_id);
		CREATE INDEX IF NOT EXISTS idx_actor_following_state ON actor_following(state);
	`

	// Published objects
	sqlCreateObjectsTable = `CREATE TABLE IF NOT EXISTS objects (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		properties TEXT NOT NULL DEFAULT '{}',
		local INTEGER DEFAULT 0,
		cdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateObjectsIndices = `
		CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(type);
		CREATE INDEX IF NOT EXISTS idx_objects_local ON objects(local);
	`

	// Outbox entries joining objects to their publisher and visibility target
	sqlCreateOutboxTable = `CREATE TABLE IF NOT EXISTS outbox_objects (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		target TEXT NOT NULL,
		published_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateOutboxIndices = `
		CREATE INDEX IF NOT EXISTS idx_outbox_objects_actor_id ON outbox_objects(actor_id);
		CREATE INDEX IF NOT EXISTS idx_outbox_objects_object_id ON outbox_objects(object_id);
		CREATE INDEX IF NOT EXISTS idx_outbox_objects_target ON outbox_objects(target);
		CREATE INDEX IF NOT EXISTS idx_outbox_objects_published_date ON outbox_objects(published_date DESC);
	`

	// Engagement tables, counted by the timeline queries
	sqlCreateFavouritesTable = `CREATE TABLE IF NOT EXISTS actor_favourites (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		cdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, object_id)
	)`

	sqlCreateReblogsTable = `CREATE TABLE IF NOT EXISTS actor_reblogs (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		cdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, object_id)
	)`

	sqlCreateRepliesTable = `CREATE TABLE IF NOT EXISTS actor_replies (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		in_reply_to_object_id TEXT NOT NULL,
		cdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateEngagementIndices = `
		CREATE INDEX IF NOT EXISTS idx_actor_favourites_object_id ON actor_favourites(object_id);
		CREATE INDEX IF NOT EXISTS idx_actor_reblogs_object_id ON actor_reblogs(object_id);
		CREATE INDEX IF NOT EXISTS idx_actor_replies_in_reply_to ON actor_replies(in_reply_to_object_id);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		// Create new tables
		if err := db.createTableIfNotExists(tx, sqlCreateFollowingTable, "actor_following"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateObjectsTable, "objects"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateOutboxTable, "outbox_objects"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateFavouritesTable, "actor_favourites"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateReblogsTable, "actor_reblogs"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateRepliesTable, "actor_replies"); err != nil {
			return err
		}

		// Create indices
		if _, err := tx.Exec(sqlCreateFollowingIndices); err != nil {
			log.Printf("Warning: Failed to create actor_following indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateObjectsIndices); err != nil {
			log.Printf("Warning: Failed to create objects indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateOutboxIndices); err != nil {
			log.Printf("Warning: Failed to create outbox_objects indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateEngagementIndices); err != nil {
			log.Printf("Warning: Failed to create engagement indices: %v", err)
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	log.Printf("Table %s created or already exists", tableName)
	return nil
}
