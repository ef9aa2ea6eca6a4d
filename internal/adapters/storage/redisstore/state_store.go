// Package redisstore guarda el estado de adherencia en Redis con
// concurrencia optimista (WATCH/MULTI).
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"medication-adherence/internal/domain/adherence"

	"github.com/redis/go-redis/v9"
)

// maxRetries acota los reintentos cuando otro escritor tocó la clave.
const maxRetries = 8

var ErrConflict = errors.New("state update conflict")

type StateStore struct {
	client    *redis.Client
	keyPrefix string
}

// Open conecta usando una URL redis:// y verifica con PING.
func Open(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func NewStateStore(client *redis.Client, keyPrefix string) *StateStore {
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "adherence"
	}
	return &StateStore{client: client, keyPrefix: keyPrefix}
}

func (s *StateStore) stateKey(patientID string) string {
	return s.keyPrefix + ":state:" + patientID
}

func (s *StateStore) indexKey() string {
	return s.keyPrefix + ":patients"
}

// Create escribe el estado y lo agrega al índice en una sola transacción.
// Si la clave ya existe se asegura igual la entrada del índice.
func (s *StateStore) Create(ctx context.Context, st adherence.State) error {
	if strings.TrimSpace(st.PatientID) == "" {
		return adherence.ErrInvalidInput
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	key := s.stateKey(st.PatientID)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			if err := tx.SAdd(ctx, s.indexKey(), st.PatientID).Err(); err != nil {
				return err
			}
			return adherence.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.SAdd(ctx, s.indexKey(), st.PatientID)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrConflict, st.PatientID)
}

func (s *StateStore) Load(ctx context.Context, patientID string) (adherence.State, error) {
	return decode(s.client.Get(ctx, s.stateKey(patientID)).Bytes())
}

// Update relee y reintenta si la clave cambió entre el GET y el EXEC, así
// que fn puede correr más de una vez.
func (s *StateStore) Update(ctx context.Context, patientID string, fn func(st *adherence.State) error) error {
	key := s.stateKey(patientID)

	txf := func(tx *redis.Tx) error {
		st, err := decode(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrConflict, patientID)
}

func (s *StateStore) ListPatients(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func decode(data []byte, err error) (adherence.State, error) {
	if errors.Is(err, redis.Nil) {
		return adherence.State{}, adherence.ErrNotFound
	}
	if err != nil {
		return adherence.State{}, err
	}
	var st adherence.State
	if err := json.Unmarshal(data, &st); err != nil {
		return adherence.State{}, err
	}
	return st, nil
}
