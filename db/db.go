package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/util"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	//Actors
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors(
                        id text NOT NULL PRIMARY KEY,
                        type text NOT NULL DEFAULT 'Person',
                        username varchar(100),
                        domain varchar(255),
                        properties text NOT NULL DEFAULT '{}',
                        cdate timestamp default current_timestamp,
                        refreshed_at timestamp default current_timestamp,
                        is_local int default 0,
                        privkey blob,
                        privkey_salt blob
                        )`
	sqlInsertActor = `INSERT INTO actors(id, type, username, domain, properties, cdate, refreshed_at, is_local, privkey, privkey_salt) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpsertActor = `INSERT INTO actors(id, type, username, domain, properties, cdate, refreshed_at, is_local) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                        ON CONFLICT(id) DO UPDATE SET type = excluded.type, username = excluded.username, domain = excluded.domain,
                        properties = excluded.properties, refreshed_at = excluded.refreshed_at`
	sqlSelectActorById  = `SELECT id, type, username, domain, properties, cdate, refreshed_at, is_local, privkey, privkey_salt FROM actors WHERE id = ?`
	sqlSelectLocalActors = `SELECT id, type, username, domain, properties, cdate, refreshed_at, is_local, privkey, privkey_salt FROM actors WHERE is_local = 1`

	//Follows
	sqlInsertFollow = `INSERT INTO actor_following(id, actor_id, target_actor_id, state, cdate) VALUES (?, ?, ?, ?, ?)`
	sqlAcceptFollow = `UPDATE actor_following SET state = 'accepted' WHERE actor_id = ? AND target_actor_id = ?`
	sqlSelectFollowerIds = `SELECT actor_id FROM actor_following WHERE target_actor_id = ? AND state = 'accepted'`
	sqlSelectAcceptedFollowing = `SELECT actor_following.target_actor_id,
                                        json_extract(actors.properties, '$.followers')
                                 FROM actor_following
                                 INNER JOIN actors ON actors.id = actor_following.target_actor_id
                                 WHERE actor_following.actor_id = ? AND actor_following.state = 'accepted'`

	//Objects and outbox
	sqlInsertObject      = `INSERT INTO objects(id, type, properties, local, cdate) VALUES (?, ?, ?, ?, ?)`
	sqlSelectObjectById  = `SELECT id, type, properties, local, cdate FROM objects WHERE id = ?`
	sqlInsertOutboxEntry = `INSERT INTO outbox_objects(id, actor_id, object_id, target, published_date) VALUES (?, ?, ?, ?, ?)`

	//Engagement
	sqlInsertFavourite = `INSERT INTO actor_favourites(id, actor_id, object_id, cdate) VALUES (?, ?, ?, ?)`
	sqlInsertReblog    = `INSERT INTO actor_reblogs(id, actor_id, object_id, cdate) VALUES (?, ?, ?, ?)`
	sqlInsertReply     = `INSERT INTO actor_replies(id, actor_id, object_id, in_reply_to_object_id, cdate) VALUES (?, ?, ?, ?, ?)`
)

// Timeline queries. The sentinel target for public visibility is baked into
// the query text, the rest binds positionally. Correlated subselects compute
// engagement counts and, for the home timeline, the per-viewer flags.
const (
	sqlSelectHomeTimeline = `SELECT objects.id,
       objects.type,
       objects.properties,
       objects.local,
       objects.cdate,
       actors.id,
       actors.cdate,
       actors.properties,
       outbox_objects.actor_id,
       outbox_objects.published_date,
       (SELECT count(*) FROM actor_favourites WHERE actor_favourites.object_id = objects.id),
       (SELECT count(*) FROM actor_reblogs WHERE actor_reblogs.object_id = objects.id),
       (SELECT count(*) FROM actor_replies WHERE actor_replies.in_reply_to_object_id = objects.id),
       (SELECT count(*) > 0 FROM actor_reblogs WHERE actor_reblogs.object_id = objects.id AND actor_reblogs.actor_id = ?1),
       (SELECT count(*) > 0 FROM actor_favourites WHERE actor_favourites.object_id = objects.id AND actor_favourites.actor_id = ?1)
FROM outbox_objects
INNER JOIN objects ON objects.id = outbox_objects.object_id
INNER JOIN actors ON actors.id = outbox_objects.actor_id
WHERE objects.type = 'Note'
      AND outbox_objects.actor_id IN (SELECT value FROM json_each(?2))
      AND json_extract(objects.properties, '$.inReplyTo') IS NULL
      AND (outbox_objects.target = '` + domain.PublicGroup + `' OR outbox_objects.target IN (SELECT value FROM json_each(?3)))
ORDER BY outbox_objects.published_date DESC
LIMIT ?4`

	sqlSelectPublicTimeline = `SELECT objects.id,
       objects.type,
       objects.properties,
       objects.local,
       objects.cdate,
       actors.id,
       actors.cdate,
       actors.properties,
       outbox_objects.actor_id,
       outbox_objects.published_date,
       (SELECT count(*) FROM actor_favourites WHERE actor_favourites.object_id = objects.id),
       (SELECT count(*) FROM actor_reblogs WHERE actor_reblogs.object_id = objects.id),
       (SELECT count(*) FROM actor_replies WHERE actor_replies.in_reply_to_object_id = objects.id)
FROM outbox_objects
INNER JOIN objects ON objects.id = outbox_objects.object_id
INNER JOIN actors ON actors.id = outbox_objects.actor_id
WHERE objects.type = 'Note'
      AND %s
      AND json_extract(objects.properties, '$.inReplyTo') IS NULL
      AND outbox_objects.target = '` + domain.PublicGroup + `'
ORDER BY outbox_objects.published_date DESC
LIMIT ?1 OFFSET ?2`
)

func (db *DB) CreateActor(actor *domain.Actor) error {
	properties, err := json.Marshal(actor.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal actor properties: %w", err)
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActor,
			actor.Id,
			actor.Type,
			actor.Username,
			actor.Domain,
			string(properties),
			actor.Cdate,
			actor.RefreshedAt,
			actor.IsLocal,
			actor.PrivKey,
			actor.PrivKeySalt,
		)
		return err
	})
}

// UpsertActor inserts or refreshes a remote actor record. Concurrent refreshes
// of the same actor are fine, the last writer wins.
func (db *DB) UpsertActor(actor *domain.Actor) error {
	properties, err := json.Marshal(actor.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal actor properties: %w", err)
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertActor,
			actor.Id,
			actor.Type,
			actor.Username,
			actor.Domain,
			string(properties),
			actor.Cdate,
			actor.RefreshedAt,
			actor.IsLocal,
		)
		return err
	})
}

func (db *DB) ReadActorById(id string) (error, *domain.Actor) {
	row := db.db.QueryRow(sqlSelectActorById, id)
	return scanActor(row)
}

func (db *DB) ReadLocalActors() (error, *[]domain.Actor) {
	rows, err := db.db.Query(sqlSelectLocalActors)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		err, actor := scanActorRows(rows)
		if err != nil {
			return err, &actors
		}
		actors = append(actors, *actor)
	}
	if err = rows.Err(); err != nil {
		return err, &actors
	}
	return nil, &actors
}

func scanActor(row *sql.Row) (error, *domain.Actor) {
	var actor domain.Actor
	var properties string
	var isLocal int
	err := row.Scan(&actor.Id, &actor.Type, &actor.Username, &actor.Domain, &properties, &actor.Cdate, &actor.RefreshedAt, &isLocal, &actor.PrivKey, &actor.PrivKeySalt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if err := json.Unmarshal([]byte(properties), &actor.Properties); err != nil {
		return err, nil
	}
	actor.IsLocal = isLocal == 1
	return nil, &actor
}

func scanActorRows(rows *sql.Rows) (error, *domain.Actor) {
	var actor domain.Actor
	var properties string
	var isLocal int
	err := rows.Scan(&actor.Id, &actor.Type, &actor.Username, &actor.Domain, &properties, &actor.Cdate, &actor.RefreshedAt, &isLocal, &actor.PrivKey, &actor.PrivKeySalt)
	if err != nil {
		return err, nil
	}
	if err := json.Unmarshal([]byte(properties), &actor.Properties); err != nil {
		return err, nil
	}
	actor.IsLocal = isLocal == 1
	return nil, &actor
}

func (db *DB) CreateFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id,
			follow.ActorId,
			follow.TargetActorId,
			follow.State,
			follow.CreatedAt,
		)
		return err
	})
}

func (db *DB) AcceptFollow(actorId string, targetActorId string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollow, actorId, targetActorId)
		return err
	})
}

// ReadFollowerIds returns the ids of all actors following the given actor
// with an accepted edge
func (db *DB) ReadFollowerIds(actorId string) (error, []string) {
	rows, err := db.db.Query(sqlSelectFollowerIds, actorId)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var followers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err, followers
		}
		followers = append(followers, id)
	}
	if err = rows.Err(); err != nil {
		return err, followers
	}
	return nil, followers
}

// ReadAcceptedFollowing returns the actors the given actor follows with an
// accepted edge, along with their stored followers collection URL when known
func (db *DB) ReadAcceptedFollowing(actorId string) (error, *[]domain.FollowingTarget) {
	rows, err := db.db.Query(sqlSelectAcceptedFollowing, actorId)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var following []domain.FollowingTarget
	for rows.Next() {
		var target domain.FollowingTarget
		var followersURL sql.NullString
		if err := rows.Scan(&target.Id, &followersURL); err != nil {
			return err, &following
		}
		if followersURL.Valid {
			target.Followers = followersURL.String
		}
		following = append(following, target)
	}
	if err = rows.Err(); err != nil {
		return err, &following
	}
	return nil, &following
}

func (db *DB) CreateObject(object *domain.Object) error {
	properties, err := json.Marshal(object.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal object properties: %w", err)
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertObject,
			object.Id,
			object.Type,
			string(properties),
			object.Local,
			object.Cdate,
		)
		return err
	})
}

func (db *DB) ReadObjectById(id string) (error, *domain.Object) {
	row := db.db.QueryRow(sqlSelectObjectById, id)
	var object domain.Object
	var properties string
	var local int
	err := row.Scan(&object.Id, &object.Type, &properties, &local, &object.Cdate)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if err := json.Unmarshal([]byte(properties), &object.Properties); err != nil {
		return err, nil
	}
	object.Local = local == 1
	return nil, &object
}

func (db *DB) CreateOutboxEntry(entry *domain.OutboxEntry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertOutboxEntry,
			entry.Id,
			entry.ActorId,
			entry.ObjectId,
			entry.Target,
			entry.PublishedDate,
		)
		return err
	})
}

func (db *DB) CreateFavourite(id string, actorId string, objectId string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFavourite, id, actorId, objectId, time.Now())
		return err
	})
}

func (db *DB) CreateReblog(id string, actorId string, objectId string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReblog, id, actorId, objectId, time.Now())
		return err
	})
}

func (db *DB) CreateReply(id string, actorId string, objectId string, inReplyToObjectId string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReply, id, actorId, objectId, inReplyToObjectId, time.Now())
		return err
	})
}

// ReadHomeTimeline joins the follow graph against the object store for one
// viewing actor. The id and followers-URL sets bind as JSON arrays consumed
// with json_each.
func (db *DB) ReadHomeTimeline(viewerId string, followingIds []string, followersURLs []string, limit int) (error, *[]domain.TimelineRow) {
	idsJSON, err := json.Marshal(followingIds)
	if err != nil {
		return err, nil
	}
	urlsJSON, err := json.Marshal(followersURLs)
	if err != nil {
		return err, nil
	}

	rows, err := db.db.Query(sqlSelectHomeTimeline, viewerId, string(idsJSON), string(urlsJSON), limit)
	if err != nil {
		return fmt.Errorf("home timeline query failed: %w", err), nil
	}
	defer rows.Close()

	var timeline []domain.TimelineRow
	for rows.Next() {
		var row domain.TimelineRow
		var local, reblogged, favourited int
		if err := rows.Scan(
			&row.ObjectId,
			&row.ObjectType,
			&row.Properties,
			&local,
			&row.ObjectCdate,
			&row.ActorId,
			&row.ActorCdate,
			&row.ActorProperties,
			&row.PublisherActorId,
			&row.PublishedDate,
			&row.FavouritesCount,
			&row.ReblogsCount,
			&row.RepliesCount,
			&reblogged,
			&favourited,
		); err != nil {
			return err, &timeline
		}
		row.Local = local == 1
		row.Reblogged = reblogged == 1
		row.Favourited = favourited == 1
		timeline = append(timeline, row)
	}
	if err = rows.Err(); err != nil {
		return err, &timeline
	}
	return nil, &timeline
}

// ReadPublicTimeline selects publicly targeted objects with optional locality
// filtering and offset pagination. No per-viewer flags, there is no viewer.
func (db *DB) ReadPublicTimeline(preference domain.LocalPreference, limit int, offset int) (error, *[]domain.TimelineRow) {
	query := fmt.Sprintf(sqlSelectPublicTimeline, localPreferenceQuery(preference))

	rows, err := db.db.Query(query, limit, offset)
	if err != nil {
		return fmt.Errorf("public timeline query failed: %w", err), nil
	}
	defer rows.Close()

	var timeline []domain.TimelineRow
	for rows.Next() {
		var row domain.TimelineRow
		var local int
		if err := rows.Scan(
			&row.ObjectId,
			&row.ObjectType,
			&row.Properties,
			&local,
			&row.ObjectCdate,
			&row.ActorId,
			&row.ActorCdate,
			&row.ActorProperties,
			&row.PublisherActorId,
			&row.PublishedDate,
			&row.FavouritesCount,
			&row.ReblogsCount,
			&row.RepliesCount,
		); err != nil {
			return err, &timeline
		}
		row.Local = local == 1
		timeline = append(timeline, row)
	}
	if err = rows.Err(); err != nil {
		return err, &timeline
	}
	return nil, &timeline
}

func localPreferenceQuery(preference domain.LocalPreference) string {
	switch preference {
	case domain.OnlyLocal:
		return "objects.local = 1"
	case domain.OnlyRemote:
		return "objects.local = 0"
	default:
		return "1"
	}
}

func GetDB() *DB {
	dbOnce.Do(func() {
		database, err := Open(util.ResolveFilePath("database.db"))
		if err != nil {
			panic(err)
		}
		dbInstance = database
	})

	return dbInstance
}

// Open opens a database at the given path and sets up the schema. Tests use
// ":memory:".
func Open(dsn string) (*DB, error) {
	// Open database connection
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if dsn == ":memory:" {
		// A pooled connection would get its own empty in-memory database
		db.SetMaxOpenConns(1)
	} else {
		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		// WAL2 not supported, try regular WAL
		err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
		}
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	// Optimize PRAGMAs for concurrent federation workload
	// These need to be set as connection defaults
	db.Exec("PRAGMA synchronous = NORMAL")      // Reduces fsync calls
	db.Exec("PRAGMA cache_size = -64000")       // 64MB cache per connection
	db.Exec("PRAGMA temp_store = MEMORY")       // Store temp tables in RAM
	db.Exec("PRAGMA busy_timeout = 5000")       // Wait up to 5s for locks
	db.Exec("PRAGMA foreign_keys = ON")         // Enable FK constraints
	db.Exec("PRAGMA auto_vacuum = INCREMENTAL") // Better performance than FULL

	log.Printf("Database initialized at %s", dsn)

	database := &DB{db: db}

	// Run initial schema setup
	if err := database.CreateDB(); err != nil {
		return nil, err
	}

	return database, nil
}

// CreateDB creates the database.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlCreateActorsTable)
		return err
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
