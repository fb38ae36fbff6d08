package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"zcl-gateway/internal/transport"
	"zcl-gateway/internal/zigbee"
)

var bucketNodes = []byte("nodes")

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNodes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// nodeKey encodes index big-endian so cursor order is index order.
func nodeKey(index int) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(index))
	return k[:]
}

func (s *BoltStore) SaveNode(node *Node) error {
	if node.Index < 0 {
		return fmt.Errorf("save node: negative index %d", node.Index)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNodes)
		}
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return b.Put(nodeKey(node.Index), data)
	})
}

func (s *BoltStore) GetNode(index int) (*Node, error) {
	var node Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNodes)
		}
		data := b.Get(nodeKey(index))
		if data == nil {
			return fmt.Errorf("node %d: %w", index, ErrNotFound)
		}
		return json.Unmarshal(data, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStore) NodeByIEEE(addr zigbee.IEEEAddress) (*Node, error) {
	nodes, err := s.ListNodes()
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.IEEEAddress == addr {
			return n, nil
		}
	}
	return nil, fmt.Errorf("node %s: %w", addr, ErrNotFound)
}

func (s *BoltStore) DeleteNode(index int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNodes)
		}
		return b.Delete(nodeKey(index))
	})
}

func (s *BoltStore) ListNodes() ([]*Node, error) {
	var nodes []*Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return nil
		}
		nodes = make([]*Node, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var node Node
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("node %x: %w", k, err)
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(index int, fn func(node *Node) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNodes)
		}
		data := b.Get(nodeKey(index))
		if data == nil {
			return fmt.Errorf("node %d: %w", index, ErrNotFound)
		}
		var node Node
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		if err := fn(&node); err != nil {
			return err
		}
		node.Index = index
		out, err := json.Marshal(&node)
		if err != nil {
			return err
		}
		return b.Put(nodeKey(index), out)
	})
}

// Node implements the transport's directory lookup.
func (s *BoltStore) Node(index int) (transport.Node, error) {
	n, err := s.GetNode(index)
	if errors.Is(err, ErrNotFound) {
		return transport.Node{}, fmt.Errorf("node %d: %w", index, transport.ErrNoNode)
	}
	if err != nil {
		return transport.Node{}, err
	}
	return transport.Node{Index: n.Index, IEEEAddress: n.IEEEAddress, NetworkAddress: n.NetworkAddress}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
