package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBSwipeNotification struct {
	ID         string `msgpack:"id"`
	Type       string `msgpack:"type"`
	SenderID   string `msgpack:"senderId"`
	SenderName string `msgpack:"senderName"`
	AvatarURL  string `msgpack:"avatarUrl"`
	Timestamp  int64  `msgpack:"timestamp"`
	Read       bool   `msgpack:"read"`
}

// Key orders records chronologically within a user bucket; the id suffix
// keeps same-second records distinct.
func (n *DBSwipeNotification) Key() []byte {
	key := make([]byte, 8, 8+len(n.ID))
	binary.BigEndian.PutUint64(key, uint64(n.Timestamp))
	return append(key, n.ID...)
}

func (n *DBSwipeNotification) MarshalBinary() (data []byte, err error) {
	type alias DBSwipeNotification
	return msgpack.Marshal((*alias)(n))
}

func (n *DBSwipeNotification) UnmarshalBinary(data []byte) error {
	type alias DBSwipeNotification
	return msgpack.Unmarshal(data, (*alias)(n))
}

type DBSession struct {
	UserID string `msgpack:"userId"`
	Token  string `msgpack:"token"`
}

func (s *DBSession) Key() []byte {
	return []byte("current")
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}
