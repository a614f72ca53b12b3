package storage

import (
	"fmt"
	"time"

	"cinder/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketSwipeNotifications = []byte("swipe_notifications")
	bucketSession            = []byte("session")
)

// LocalStore is the client's durable local state: per-user swipe
// notifications and the persisted login session. Swipe notification
// records live in a nested bucket per user id, so one account's records
// never leak into another's.
type LocalStore struct {
	db *bbolt.DB
}

func NewLocalStore(path string) (*LocalStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSwipeNotifications); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSession); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// AddSwipeNotification stores a client-synthesized swipe record under the
// given user id.
func (s *LocalStore) AddSwipeNotification(userID string, n models.LocalSwipeNotification) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if userID == "" {
			return fmt.Errorf("swipe notification missing userID")
		}

		root := tx.Bucket(bucketSwipeNotifications)
		userBucket, err := root.CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return fmt.Errorf("failed to create user bucket: %w", err)
		}

		dbNotif := DBSwipeNotification{
			ID:         n.ID,
			Type:       string(n.Type),
			SenderID:   n.Sender.ID,
			SenderName: n.Sender.DisplayName,
			AvatarURL:  n.Sender.AvatarURL,
			Timestamp:  n.Timestamp,
			Read:       n.Read,
		}

		data, err := dbNotif.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal swipe notification: %w", err)
		}
		return userBucket.Put(dbNotif.Key(), data)
	})
}

// ListSwipeNotifications returns the user's records, most recent first.
func (s *LocalStore) ListSwipeNotifications(userID string) ([]models.LocalSwipeNotification, error) {
	var notifications []models.LocalSwipeNotification
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketSwipeNotifications)
		userBucket := root.Bucket([]byte(userID))
		if userBucket == nil {
			return nil // Nothing stored for this user
		}

		c := userBucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var dbNotif DBSwipeNotification
			if err := dbNotif.UnmarshalBinary(v); err != nil {
				return err
			}
			notifications = append(notifications, models.LocalSwipeNotification{
				ID:   dbNotif.ID,
				Type: models.LocalSwipeType(dbNotif.Type),
				Sender: models.Profile{
					ID:          dbNotif.SenderID,
					DisplayName: dbNotif.SenderName,
					AvatarURL:   dbNotif.AvatarURL,
				},
				Timestamp: dbNotif.Timestamp,
				Read:      dbNotif.Read,
			})
		}
		return nil
	})
	return notifications, err
}

// MarkSwipeNotificationsRead flips read on the records with the given ids.
// Unknown ids are ignored.
func (s *LocalStore) MarkSwipeNotificationsRead(userID string, ids []string) error {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketSwipeNotifications)
		userBucket := root.Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}

		type update struct {
			key  []byte
			data []byte
		}
		var updates []update

		err := userBucket.ForEach(func(k, v []byte) error {
			var dbNotif DBSwipeNotification
			if err := dbNotif.UnmarshalBinary(v); err != nil {
				return err
			}
			if !wanted[dbNotif.ID] || dbNotif.Read {
				return nil
			}
			dbNotif.Read = true
			data, err := dbNotif.MarshalBinary()
			if err != nil {
				return err
			}
			updates = append(updates, update{key: append([]byte(nil), k...), data: data})
			return nil
		})
		if err != nil {
			return err
		}

		for _, u := range updates {
			if err := userBucket.Put(u.key, u.data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearUser drops everything stored for the user id. Called on logout and
// on identity change.
func (s *LocalStore) ClearUser(userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketSwipeNotifications)
		if root.Bucket([]byte(userID)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(userID))
	})
}

func (s *LocalStore) SaveSession(userID, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		dbSession := &DBSession{
			UserID: userID,
			Token:  token,
		}
		data, err := dbSession.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbSession.Key(), data)
	})
}

func (s *LocalStore) LoadSession() (userID, token string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data := b.Get((&DBSession{}).Key())
		if data == nil {
			return models.ErrNotFound
		}
		var dbSession DBSession
		if err := dbSession.UnmarshalBinary(data); err != nil {
			return err
		}
		userID = dbSession.UserID
		token = dbSession.Token
		return nil
	})
	return userID, token, err
}

func (s *LocalStore) DeleteSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		return b.Delete((&DBSession{}).Key())
	})
}
